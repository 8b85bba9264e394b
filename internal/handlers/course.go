package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/course-pilot/apiserver/internal/auth"
	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/internal/services"
	"github.com/course-pilot/apiserver/internal/storage"
	"github.com/course-pilot/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	thumbnailPrefix = "thumbnails"
	resourcePrefix  = "resources"
)

// CourseService is the content tree surface used by the course endpoints.
type CourseService interface {
	List(ctx context.Context, offset, limit int) ([]types.Course, int, error)
	Get(ctx context.Context, id string) (types.Course, error)
	GetContent(ctx context.Context, id string) (types.Course, error)
	Create(ctx context.Context, in services.CourseInput) (types.Course, error)
	Update(ctx context.Context, id string, update types.CourseUpdate) (types.Course, error)
	Delete(ctx context.Context, id string) error
	AddModule(ctx context.Context, courseID, title string) (types.Module, error)
	RenameModule(ctx context.Context, courseID, moduleID, title string) error
	RemoveModule(ctx context.Context, courseID, moduleID string) error
	AddLecture(ctx context.Context, courseID, moduleID string, in services.LectureInput) (types.Lecture, error)
	UpdateLecture(ctx context.Context, courseID, moduleID, lectureID string, update types.LectureUpdate) (types.Lecture, error)
	RemoveLecture(ctx context.Context, courseID, moduleID, lectureID string) error
}

// Enroller is the enrollment surface used by the course endpoints.
type Enroller interface {
	Enroll(ctx context.Context, userID, courseID string) (services.EnrollResult, error)
}

// CourseHandler provides the course catalog and enrollment endpoints.
type CourseHandler struct {
	courses  CourseService
	enroller Enroller
	cookies  auth.CookieConfig
	uploader storage.Uploader
	logger   *zap.Logger
}

// NewCourseHandler builds the course endpoints. uploader may be nil, in
// which case file uploads are rejected and thumbnails must be URLs.
func NewCourseHandler(courses CourseService, enroller Enroller, cookies auth.CookieConfig, uploader storage.Uploader, logger *zap.Logger) *CourseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseHandler{courses: courses, enroller: enroller, cookies: cookies, uploader: uploader, logger: logger}
}

// CourseRouter registers the catalog, content and enrollment endpoints.
// The router is expected to run behind guard.Authenticate.
func CourseRouter(r chi.Router, h *CourseHandler, guard *Guard) {
	admin := guard.RequireRole(types.RoleAdmin)

	r.Route("/courses", func(r chi.Router) {
		r.Get("/", h.List)
		r.With(admin).Post("/", h.Create)
		r.With(admin).Post("/resources", h.UploadResource)

		r.Route("/{courseID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.With(admin).Put("/", h.Update)
			r.With(admin).Delete("/", h.Delete)
			r.With(guard.RequireEnrollment("courseID")).Get("/content", h.Content)
			r.With(guard.RequireUser).Post("/enroll", h.Enroll)

			r.Route("/modules", func(r chi.Router) {
				r.Use(admin)
				r.Post("/", h.AddModule)
				r.Put("/{moduleID}", h.RenameModule)
				r.Delete("/{moduleID}", h.RemoveModule)
				r.Post("/{moduleID}/lectures", h.AddLecture)
				r.Put("/{moduleID}/lectures/{lectureID}", h.UpdateLecture)
				r.Delete("/{moduleID}/lectures/{lectureID}", h.RemoveLecture)
			})
		})
	})
}

func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		respondError(w, r, h.logger, "list courses", err)
		return
	}

	items, total, err := h.courses.List(r.Context(), offset, limit)
	if err != nil {
		respondError(w, r, h.logger, "list courses", err)
		return
	}
	if items == nil {
		items = []types.Course{}
	}

	writeSuccess(w, http.StatusOK, "courses", ListResponse[types.Course]{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	course, err := h.courses.Get(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		respondError(w, r, h.logger, "get course", err)
		return
	}
	writeSuccess(w, http.StatusOK, "course", course)
}

func (h *CourseHandler) Content(w http.ResponseWriter, r *http.Request) {
	course, err := h.courses.GetContent(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		respondError(w, r, h.logger, "get course content", err)
		return
	}
	writeSuccess(w, http.StatusOK, "course content", course)
}

func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, uploaded, err := h.courseInput(w, r)
	if err != nil {
		respondError(w, r, h.logger, "create course", err)
		return
	}

	course, err := h.courses.Create(r.Context(), in)
	if err != nil {
		discardUpload(r.Context(), h.uploader, h.logger, uploaded)
		respondError(w, r, h.logger, "create course", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "course created", course)
}

// courseInput reads a new course from JSON or from a multipart form whose
// thumbnail is either an uploaded file or a thumbnail_url field. uploaded
// is the URL of a thumbnail stored while reading the form.
func (h *CourseHandler) courseInput(w http.ResponseWriter, r *http.Request) (in services.CourseInput, uploaded string, err error) {
	if !isMultipart(r) {
		return in, "", decodeJSON(w, r, &in)
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return in, "", errs.Validationf("invalid multipart form")
	}
	in.Title = r.FormValue("title")
	in.Description = r.FormValue("description")
	in.Thumbnail = r.FormValue("thumbnail_url")
	if in.Price, err = parsePrice(r.FormValue("price")); err != nil {
		return in, "", err
	}

	uploaded, err = h.thumbnailFromForm(r)
	if err != nil {
		return in, "", err
	}
	if uploaded != "" {
		in.Thumbnail = uploaded
	}
	return in, uploaded, nil
}

func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	update, uploaded, err := h.courseUpdate(w, r)
	if err != nil {
		respondError(w, r, h.logger, "update course", err)
		return
	}

	course, err := h.courses.Update(r.Context(), chi.URLParam(r, "courseID"), update)
	if err != nil {
		discardUpload(r.Context(), h.uploader, h.logger, uploaded)
		respondError(w, r, h.logger, "update course", err)
		return
	}
	writeSuccess(w, http.StatusOK, "course updated", course)
}

func (h *CourseHandler) courseUpdate(w http.ResponseWriter, r *http.Request) (update types.CourseUpdate, uploaded string, err error) {
	if !isMultipart(r) {
		return update, "", decodeJSON(w, r, &update)
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return update, "", errs.Validationf("invalid multipart form")
	}
	update.Title = formPtr(r, "title")
	update.Description = formPtr(r, "description")
	update.Thumbnail = formPtr(r, "thumbnail_url")
	if raw := formPtr(r, "price"); raw != nil {
		if update.Price, err = parsePrice(*raw); err != nil {
			return update, "", err
		}
	}

	uploaded, err = h.thumbnailFromForm(r)
	if err != nil {
		return update, "", err
	}
	if uploaded != "" {
		update.Thumbnail = &uploaded
	}
	return update, uploaded, nil
}

func (h *CourseHandler) thumbnailFromForm(r *http.Request) (string, error) {
	file, ok, err := formFile(r.MultipartForm, "thumbnail")
	if err != nil || !ok {
		return "", err
	}
	return h.upload(r.Context(), thumbnailPrefix, file)
}

func (h *CourseHandler) upload(ctx context.Context, prefix string, file uploadedFile) (string, error) {
	if h.uploader == nil {
		return "", errs.Validationf("file uploads are not enabled")
	}
	return h.uploader.Upload(ctx, prefix, file.Filename, file.Data)
}

func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.courses.Delete(r.Context(), chi.URLParam(r, "courseID")); err != nil {
		respondError(w, r, h.logger, "delete course", err)
		return
	}
	writeSuccess(w, http.StatusOK, "course deleted", nil)
}

type moduleRequest struct {
	Title string `json:"title"`
}

func (h *CourseHandler) AddModule(w http.ResponseWriter, r *http.Request) {
	var req moduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, "add module", err)
		return
	}

	module, err := h.courses.AddModule(r.Context(), chi.URLParam(r, "courseID"), req.Title)
	if err != nil {
		respondError(w, r, h.logger, "add module", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "module added", module)
}

func (h *CourseHandler) RenameModule(w http.ResponseWriter, r *http.Request) {
	var req moduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, "rename module", err)
		return
	}

	err := h.courses.RenameModule(r.Context(), chi.URLParam(r, "courseID"), chi.URLParam(r, "moduleID"), req.Title)
	if err != nil {
		respondError(w, r, h.logger, "rename module", err)
		return
	}
	writeSuccess(w, http.StatusOK, "module updated", nil)
}

func (h *CourseHandler) RemoveModule(w http.ResponseWriter, r *http.Request) {
	err := h.courses.RemoveModule(r.Context(), chi.URLParam(r, "courseID"), chi.URLParam(r, "moduleID"))
	if err != nil {
		respondError(w, r, h.logger, "remove module", err)
		return
	}
	writeSuccess(w, http.StatusOK, "module removed", nil)
}

func (h *CourseHandler) AddLecture(w http.ResponseWriter, r *http.Request) {
	var in services.LectureInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, h.logger, "add lecture", err)
		return
	}

	lecture, err := h.courses.AddLecture(r.Context(), chi.URLParam(r, "courseID"), chi.URLParam(r, "moduleID"), in)
	if err != nil {
		respondError(w, r, h.logger, "add lecture", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "lecture added", lecture)
}

func (h *CourseHandler) UpdateLecture(w http.ResponseWriter, r *http.Request) {
	var update types.LectureUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		respondError(w, r, h.logger, "update lecture", err)
		return
	}

	lecture, err := h.courses.UpdateLecture(r.Context(),
		chi.URLParam(r, "courseID"), chi.URLParam(r, "moduleID"), chi.URLParam(r, "lectureID"), update)
	if err != nil {
		respondError(w, r, h.logger, "update lecture", err)
		return
	}
	writeSuccess(w, http.StatusOK, "lecture updated", lecture)
}

func (h *CourseHandler) RemoveLecture(w http.ResponseWriter, r *http.Request) {
	err := h.courses.RemoveLecture(r.Context(),
		chi.URLParam(r, "courseID"), chi.URLParam(r, "moduleID"), chi.URLParam(r, "lectureID"))
	if err != nil {
		respondError(w, r, h.logger, "remove lecture", err)
		return
	}
	writeSuccess(w, http.StatusOK, "lecture removed", nil)
}

// UploadResource stores a PDF attached to a lecture and returns its URL.
func (h *CourseHandler) UploadResource(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		respondError(w, r, h.logger, "upload resource", errs.Validationf("invalid multipart form"))
		return
	}
	file, ok, err := formFile(r.MultipartForm, "file")
	if err != nil {
		respondError(w, r, h.logger, "upload resource", err)
		return
	}
	if !ok {
		respondError(w, r, h.logger, "upload resource", errs.Validationf("file is required"))
		return
	}
	if !isPDF(file) {
		respondError(w, r, h.logger, "upload resource", errs.Validationf("only PDF files are allowed"))
		return
	}

	url, err := h.upload(r.Context(), resourcePrefix, file)
	if err != nil {
		respondError(w, r, h.logger, "upload resource", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "resource uploaded", types.ResourceRef{Name: file.Filename, URL: url})
}

type enrollPayload struct {
	Enrollment types.EnrollmentRecord `json:"enrollment"`
	User       types.Principal        `json:"user"`
	Token      string                 `json:"token,omitempty"`
}

// Enroll adds the course to the caller's ledger and swaps the cookie for
// a credential that carries the new enrollment. When no credential could
// be minted the enrollment still stands and the caller keeps the old
// cookie until it logs in again.
func (h *CourseHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	courseID := chi.URLParam(r, "courseID")
	res, err := h.enroller.Enroll(r.Context(), p.ID, courseID)
	switch {
	case errors.Is(err, services.ErrCredentialNotRefreshed):
		h.logger.Warn("enrolled without refreshed credential",
			zap.String("user_id", p.ID),
			zap.String("course_id", courseID),
			zap.Error(err),
		)
		writeSuccess(w, http.StatusCreated, "enrolled; log in again to open the course", enrollPayload{Enrollment: res.Record, User: p})
		return
	case err != nil:
		respondError(w, r, h.logger, "enroll", err)
		return
	}

	h.cookies.SetCookie(w, res.Credential)
	writeSuccess(w, http.StatusCreated, "enrolled", enrollPayload{
		Enrollment: res.Record,
		User:       res.Principal,
		Token:      res.Credential.Token,
	})
}

func parsePrice(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(price, 0) || math.IsNaN(price) {
		return nil, errs.Validationf("price must be a number")
	}
	return &price, nil
}

func formPtr(r *http.Request, key string) *string {
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func isPDF(file uploadedFile) bool {
	return http.DetectContentType(file.Data) == "application/pdf"
}
