package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/course-pilot/apiserver/internal/auth"
	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/internal/services"
	"github.com/course-pilot/apiserver/internal/storage"
	"github.com/course-pilot/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const profilePrefix = "profiles"

// AccountService is the account surface used by the auth endpoints.
type AccountService interface {
	Register(ctx context.Context, in services.RegisterInput) (services.Session, error)
	Login(ctx context.Context, in services.LoginInput) (services.Session, error)
	Delete(ctx context.Context, id string) error
}

// sessionPayload is the body returned whenever a credential is issued.
type sessionPayload struct {
	User  types.Principal `json:"user"`
	Token string          `json:"token"`
}

// AuthHandler provides the registration and session endpoints.
type AuthHandler struct {
	accounts AccountService
	guard    *Guard
	cookies  auth.CookieConfig
	uploader storage.Uploader
	logger   *zap.Logger
}

// NewAuthHandler builds the auth endpoints. uploader may be nil, in which
// case profile image uploads are rejected.
func NewAuthHandler(accounts AccountService, guard *Guard, cookies auth.CookieConfig, uploader storage.Uploader, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{accounts: accounts, guard: guard, cookies: cookies, uploader: uploader, logger: logger}
}

// AuthRouter registers the session endpoints. They sit outside
// Authenticate so a stale cookie never blocks login or logout.
func AuthRouter(r chi.Router, h *AuthHandler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/logout", h.Logout)
		r.Get("/current", h.Current)
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	in, uploaded, err := h.registerInput(w, r)
	if err != nil {
		respondError(w, r, h.logger, "register", err)
		return
	}

	sess, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		discardUpload(r.Context(), h.uploader, h.logger, uploaded)
		respondError(w, r, h.logger, "register", err)
		return
	}

	h.cookies.SetCookie(w, sess.Credential)
	writeSuccess(w, http.StatusCreated, "account created", sessionPayload{User: sess.Principal, Token: sess.Credential.Token})
}

// registerInput reads the new account from JSON or a multipart form.
// uploaded is the URL of a profile image stored while reading the form.
func (h *AuthHandler) registerInput(w http.ResponseWriter, r *http.Request) (in services.RegisterInput, uploaded string, err error) {
	if !isMultipart(r) {
		return in, "", decodeJSON(w, r, &in)
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return in, "", errs.Validationf("invalid multipart form")
	}
	in.Name = r.FormValue("name")
	in.Email = r.FormValue("email")
	in.Password = r.FormValue("password")
	in.Profile = strings.TrimSpace(r.FormValue("profile_url"))

	file, ok, err := formFile(r.MultipartForm, "profile")
	if err != nil || !ok {
		return in, "", err
	}
	if uploaded, err = h.upload(r.Context(), profilePrefix, file); err != nil {
		return in, "", err
	}
	in.Profile = uploaded
	return in, uploaded, nil
}

func (h *AuthHandler) upload(ctx context.Context, prefix string, file uploadedFile) (string, error) {
	if h.uploader == nil {
		return "", errs.Validationf("file uploads are not enabled")
	}
	url, err := h.uploader.Upload(ctx, prefix, file.Filename, file.Data)
	if errors.Is(err, storage.ErrEmptyObject) {
		return "", errs.Validationf("uploaded file is empty")
	}
	return url, err
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in services.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, h.logger, "login", err)
		return
	}

	sess, err := h.accounts.Login(r.Context(), in)
	if err != nil {
		respondError(w, r, h.logger, "login", err)
		return
	}

	h.cookies.SetCookie(w, sess.Credential)
	writeSuccess(w, http.StatusOK, "logged in", sessionPayload{User: sess.Principal, Token: sess.Credential.Token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.cookies.ClearCookie(w)
	writeSuccess(w, http.StatusOK, "logged out", nil)
}

// Current reports the caller's principal. A credential that no longer
// resolves is treated as anonymous and its cookie cleared.
func (h *AuthHandler) Current(w http.ResponseWriter, r *http.Request) {
	p, err := h.guard.resolve(r)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errAccountGone):
		h.cookies.ClearCookie(w)
	default:
		h.logger.Warn("resolve current principal", zap.Error(err))
	}
	writeSuccess(w, http.StatusOK, "current user", p)
}
