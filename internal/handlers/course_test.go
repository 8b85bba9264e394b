package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/course-pilot/apiserver/internal/auth"
	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/internal/services"
	"github.com/course-pilot/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingUploader struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
}

func (u *recordingUploader) Upload(_ context.Context, prefix, filename string, _ []byte) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	url := "https://cdn.example.com/" + prefix + "/" + filename
	u.uploaded = append(u.uploaded, url)
	return url, nil
}

func (u *recordingUploader) Delete(_ context.Context, url string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, url)
	return nil
}

// stubCourses fails Create and Update with err; other methods are unused.
type stubCourses struct {
	CourseService
	err error
}

func (s stubCourses) Create(_ context.Context, in services.CourseInput) (types.Course, error) {
	if s.err != nil {
		return types.Course{}, s.err
	}
	return types.Course{ID: "c1", Title: in.Title, Thumbnail: in.Thumbnail}, nil
}

func (s stubCourses) Update(_ context.Context, id string, _ types.CourseUpdate) (types.Course, error) {
	if s.err != nil {
		return types.Course{}, s.err
	}
	return types.Course{ID: id}, nil
}

type stubEnroller struct {
	res services.EnrollResult
	err error
}

func (s stubEnroller) Enroll(context.Context, string, string) (services.EnrollResult, error) {
	return s.res, s.err
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, fileField, filename string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

var courseFields = map[string]string{"title": "Go", "description": "Learn Go", "price": "10"}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    *float64
		wantErr bool
	}{
		{"", nil, false},
		{" 12.5 ", floatPtr(12.5), false},
		{"0", floatPtr(0), false},
		{"abc", nil, true},
		{"Inf", nil, true},
		{"+Inf", nil, true},
		{"-Inf", nil, true},
		{"NaN", nil, true},
		{"1e400", nil, true},
	}
	for _, tt := range tests {
		got, err := parsePrice(tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, errs.ErrValidation, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestCreateCourseDiscardsThumbnailOnFailure(t *testing.T) {
	t.Parallel()

	uploader := &recordingUploader{}
	h := NewCourseHandler(stubCourses{err: errs.Conflictf("course title taken")}, nil, auth.CookieConfig{}, uploader, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Create(rec, multipartRequest(t, http.MethodPost, "/courses", courseFields, "thumbnail", "go.png", []byte("png")))

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.Len(t, uploader.uploaded, 1)
	assert.Equal(t, uploader.uploaded, uploader.deleted)
}

func TestCreateCourseKeepsThumbnailOnSuccess(t *testing.T) {
	t.Parallel()

	uploader := &recordingUploader{}
	h := NewCourseHandler(stubCourses{}, nil, auth.CookieConfig{}, uploader, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Create(rec, multipartRequest(t, http.MethodPost, "/courses", courseFields, "thumbnail", "go.png", []byte("png")))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, uploader.uploaded, 1)
	assert.Empty(t, uploader.deleted)
}

func TestCreateCourseRejectsInfinitePriceBeforeUpload(t *testing.T) {
	t.Parallel()

	uploader := &recordingUploader{}
	h := NewCourseHandler(stubCourses{}, nil, auth.CookieConfig{}, uploader, zap.NewNop())

	fields := map[string]string{"title": "Go", "description": "Learn Go", "price": "Inf"}
	rec := httptest.NewRecorder()
	h.Create(rec, multipartRequest(t, http.MethodPost, "/courses", fields, "thumbnail", "go.png", []byte("png")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, uploader.uploaded)
}

func TestUpdateCourseDiscardsThumbnailOnFailure(t *testing.T) {
	t.Parallel()

	uploader := &recordingUploader{}
	h := NewCourseHandler(stubCourses{err: errs.NotFoundf("course not found")}, nil, auth.CookieConfig{}, uploader, zap.NewNop())

	r := chi.NewRouter()
	r.Put("/courses/{courseID}", h.Update)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, http.MethodPut, "/courses/missing", nil, "thumbnail", "go.png", []byte("png")))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.Len(t, uploader.uploaded, 1)
	assert.Equal(t, uploader.uploaded, uploader.deleted)
}

type stubRegistrar struct {
	AccountService
	err error
}

func (s stubRegistrar) Register(context.Context, services.RegisterInput) (services.Session, error) {
	return services.Session{}, s.err
}

func TestRegisterDiscardsProfileImageOnFailure(t *testing.T) {
	t.Parallel()

	uploader := &recordingUploader{}
	h := NewAuthHandler(stubRegistrar{err: errs.Conflictf("email already registered")}, nil, auth.CookieConfig{}, uploader, zap.NewNop())

	fields := map[string]string{"name": "Ada", "email": "ada@example.com", "password": "secret123"}
	rec := httptest.NewRecorder()
	h.Register(rec, multipartRequest(t, http.MethodPost, "/auth/register", fields, "profile", "me.png", []byte("png")))

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.Len(t, uploader.uploaded, 1)
	assert.Equal(t, uploader.uploaded, uploader.deleted)
}

func enrollRouter(h *CourseHandler, p types.Principal) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	})
	r.Post("/courses/{courseID}/enroll", h.Enroll)
	return r
}

func TestEnrollSetsRefreshedCookie(t *testing.T) {
	t.Parallel()

	enrolled := learner
	enrolled.EnrolledCourseIDs = []string{"c1", "c2"}
	enroller := stubEnroller{res: services.EnrollResult{
		Record:     types.EnrollmentRecord{CourseID: "c2", CompletedLectureIDs: []string{}},
		Credential: auth.Credential{Token: "fresh-token"},
		Principal:  enrolled,
	}}
	h := NewCourseHandler(nil, enroller, auth.CookieConfig{}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	enrollRouter(h, learner).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/courses/c2/enroll", nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "fresh-token", cookies[0].Value)
}

func TestEnrollWithoutRefreshedCredential(t *testing.T) {
	t.Parallel()

	enroller := stubEnroller{
		res: services.EnrollResult{Record: types.EnrollmentRecord{CourseID: "c2", CompletedLectureIDs: []string{}}},
		err: fmt.Errorf("%w: signing key unavailable", services.ErrCredentialNotRefreshed),
	}
	h := NewCourseHandler(nil, enroller, auth.CookieConfig{}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	enrollRouter(h, learner).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/courses/c2/enroll", nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Enrollment types.EnrollmentRecord `json:"enrollment"`
			User       types.Principal        `json:"user"`
			Token      string                 `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "c2", body.Data.Enrollment.CourseID)
	assert.Equal(t, learner.ID, body.Data.User.ID)
	assert.Empty(t, body.Data.Token)
}

func TestEnrollAlreadyEnrolled(t *testing.T) {
	t.Parallel()

	h := NewCourseHandler(nil, stubEnroller{err: errs.ErrAlreadyEnrolled}, auth.CookieConfig{}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	enrollRouter(h, learner).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/courses/c1/enroll", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "already enrolled"))
}
