package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/internal/storage"
	"github.com/course-pilot/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultPage        = 1
	defaultLimit       = 20
	maxLimit           = 100
	maxJSONBodyBytes   = 1 << 20
	maxMultipartMemory = 32 << 20
	maxUploadBytes     = 20 << 20
)

type contextKey string

const contextPrincipalKey contextKey = "principal"

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p types.Principal) context.Context {
	return context.WithValue(ctx, contextPrincipalKey, p)
}

// PrincipalFromContext returns the request principal, or the anonymous
// principal when none was attached.
func PrincipalFromContext(ctx context.Context) types.Principal {
	if p, ok := ctx.Value(contextPrincipalKey).(types.Principal); ok {
		return p
	}
	return types.Anonymous()
}

// Response is the envelope of every API response.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ListResponse is the paginated list payload.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Message: message})
}

// statusFromError maps an error kind to its HTTP status.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden), errors.Is(err, errs.ErrNotEnrolled):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fallbackMessage(err error) string {
	switch {
	case errors.Is(err, errs.ErrAlreadyEnrolled):
		return "already enrolled in this course"
	case errors.Is(err, errs.ErrNotEnrolled):
		return "not enrolled in this course"
	case errors.Is(err, errs.ErrValidation):
		return "invalid request"
	case errors.Is(err, errs.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, errs.ErrForbidden):
		return "forbidden"
	case errors.Is(err, errs.ErrNotFound):
		return "not found"
	case errors.Is(err, errs.ErrConflict):
		return "conflict"
	default:
		return "internal server error"
	}
}

// respondError writes err in the envelope. Internal failures are logged
// with the operation and the ids in the route; the caller only sees a
// generic message.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, op string, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		fields := []zap.Field{zap.String("op", op), zap.Error(err)}
		for _, key := range []string{"courseID", "moduleID", "lectureID"} {
			if v := chi.URLParam(r, key); v != "" {
				fields = append(fields, zap.String(key, v))
			}
		}
		if p := PrincipalFromContext(r.Context()); !p.IsAnonymous() {
			fields = append(fields, zap.String("userID", p.ID))
		}
		logger.Error("request failed", fields...)
		writeError(w, status, fallbackMessage(err))
		return
	}
	writeError(w, status, errs.Message(err, fallbackMessage(err)))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.Validationf("invalid request body")
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errs.Validationf("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errs.Validationf("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

// uploadedFile is a multipart file read into memory.
type uploadedFile struct {
	Filename string
	Data     []byte
}

// formFile reads the single file sent under field. A missing file yields
// ok == false without an error.
func formFile(form *multipart.Form, field string) (file uploadedFile, ok bool, err error) {
	if form == nil {
		return uploadedFile{}, false, nil
	}
	files := form.File[field]
	if len(files) == 0 {
		return uploadedFile{}, false, nil
	}
	if len(files) > 1 {
		return uploadedFile{}, false, errs.Validationf("only one %s file is allowed", field)
	}

	header := files[0]
	f, err := header.Open()
	if err != nil {
		return uploadedFile{}, false, errs.Validationf("failed to read %s file", field)
	}
	data, err := readFileLimited(f, maxUploadBytes)
	_ = f.Close()
	if err != nil {
		return uploadedFile{}, false, err
	}
	return uploadedFile{Filename: header.Filename, Data: data}, true, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errs.Validationf("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errs.Validationf("uploaded file too large")
	}
	if len(data) == 0 {
		return nil, errs.Validationf("uploaded file is empty")
	}
	return data, nil
}

// discardUpload removes an object uploaded for a request that failed
// before anything came to reference it.
func discardUpload(ctx context.Context, uploader storage.Uploader, logger *zap.Logger, url string) {
	if uploader == nil || url == "" {
		return
	}
	if err := uploader.Delete(context.WithoutCancel(ctx), url); err != nil {
		logger.Warn("discard upload", zap.String("url", url), zap.Error(err))
	}
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "ok", nil)
}
