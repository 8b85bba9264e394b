package handlers

import (
	"context"
	"net/http"

	"github.com/course-pilot/apiserver/internal/auth"
	"github.com/course-pilot/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProgressService is the ledger surface used by the user endpoints.
type ProgressService interface {
	MarkLectureComplete(ctx context.Context, userID, courseID, lectureID string) (types.EnrollmentRecord, error)
	GetProgress(ctx context.Context, userID, courseID string) (types.Progress, error)
	ListEnrollments(ctx context.Context, userID string) ([]types.EnrollmentRecord, error)
}

// AccountRemover deletes an account and everything it owns.
type AccountRemover interface {
	Delete(ctx context.Context, id string) error
}

// UserHandler provides the progress and account endpoints of the caller.
type UserHandler struct {
	progress ProgressService
	accounts AccountRemover
	cookies  auth.CookieConfig
	logger   *zap.Logger
}

// NewUserHandler constructs a UserHandler with the provided dependencies.
func NewUserHandler(progress ProgressService, accounts AccountRemover, cookies auth.CookieConfig, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{progress: progress, accounts: accounts, cookies: cookies, logger: logger}
}

// UserRouter registers the caller-scoped endpoints. Every route requires a
// signed-in principal.
func UserRouter(r chi.Router, h *UserHandler, guard *Guard) {
	r.Route("/user", func(r chi.Router) {
		r.Use(guard.RequireUser)
		r.Get("/course-progress/{courseID}", h.GetProgress)
		r.Put("/course-progress", h.MarkLectureComplete)
		r.Get("/enrollments", h.ListEnrollments)
		r.Delete("/account", h.DeleteAccount)
	})
}

func (h *UserHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	progress, err := h.progress.GetProgress(r.Context(), p.ID, chi.URLParam(r, "courseID"))
	if err != nil {
		respondError(w, r, h.logger, "get progress", err)
		return
	}
	writeSuccess(w, http.StatusOK, "course progress", progress)
}

type completeLectureRequest struct {
	CourseID  string `json:"courseId"`
	LectureID string `json:"lectureId"`
}

func (h *UserHandler) MarkLectureComplete(w http.ResponseWriter, r *http.Request) {
	var req completeLectureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, "complete lecture", err)
		return
	}

	p := PrincipalFromContext(r.Context())
	record, err := h.progress.MarkLectureComplete(r.Context(), p.ID, req.CourseID, req.LectureID)
	if err != nil {
		respondError(w, r, h.logger, "complete lecture", err)
		return
	}
	writeSuccess(w, http.StatusOK, "lecture completed", record)
}

func (h *UserHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	records, err := h.progress.ListEnrollments(r.Context(), p.ID)
	if err != nil {
		respondError(w, r, h.logger, "list enrollments", err)
		return
	}
	if records == nil {
		records = []types.EnrollmentRecord{}
	}
	writeSuccess(w, http.StatusOK, "enrollments", records)
}

func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	if err := h.accounts.Delete(r.Context(), p.ID); err != nil {
		respondError(w, r, h.logger, "delete account", err)
		return
	}
	h.cookies.ClearCookie(w)
	writeSuccess(w, http.StatusOK, "account deleted", nil)
}
