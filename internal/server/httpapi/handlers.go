// Package httpapi exposes the session service over HTTP/JSON. Access tokens
// travel in the Authorization header; refresh tokens only ever travel in an
// HttpOnly cookie scoped to the API path.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dkuzmenko/authd/internal/common"
	"github.com/dkuzmenko/authd/internal/logging"
	"github.com/dkuzmenko/authd/internal/server/services"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service       *services.SessionService
	validate      *validator.Validate
	metrics       *Metrics
	logger        logging.Logger
	secureCookies bool
}

func NewHandler(service *services.SessionService, metrics *Metrics, logger logging.Logger, secureCookies bool) *Handler {
	return &Handler{
		service:       service,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		metrics:       metrics,
		logger:        logger.With("module", "httpapi"),
		secureCookies: secureCookies,
	}
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) decodeCredentials(w http.ResponseWriter, r *http.Request) (*credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return nil, false
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "email and password (8-72 chars) are required")
		return nil, false
	}
	return &req, true
}

// setRefreshCookie installs the rotated refresh token. HttpOnly and
// SameSite=Strict keep it out of scripts and cross-site requests; the /api
// path keeps it off static asset fetches.
func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshCookieName,
		Value:    token,
		Path:     "/api",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshCookieName,
		Value:    "",
		Path:     "/api",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		h.metrics.AuthOutcome("register", "ok")
		writeJSON(w, http.StatusCreated, userResponse{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt})
	case errors.Is(err, common.ErrorAlreadyExists):
		h.metrics.AuthOutcome("register", "conflict")
		writeError(w, http.StatusConflict, "email already registered")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		h.metrics.AuthOutcome("login", "ok")
		h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, TokenType: "Bearer"})
	case errors.Is(err, common.ErrInvalidCredentials):
		h.metrics.AuthOutcome("login", "denied")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Refresh rotates the refresh cookie and returns a new access token. Every
// rejection is a uniform 401: the client cannot tell a forged token from a
// replayed one.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(common.RefreshCookieName)
	if err != nil {
		h.metrics.AuthOutcome("refresh", "denied")
		writeError(w, http.StatusUnauthorized, "refresh token required")
		return
	}

	pair, err := h.service.Refresh(r.Context(), cookie.Value)
	switch {
	case err == nil:
		h.metrics.AuthOutcome("refresh", "ok")
		h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, TokenType: "Bearer"})
	case errors.Is(err, common.ErrorInternal):
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		h.metrics.AuthOutcome("refresh", "denied")
		h.logger.Debug(r.Context(), "refresh rejected", "reason", err)
		h.clearRefreshCookie(w)
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
	}
}

// Logout is always a success from the client's point of view. The cookie is
// cleared even when the presented token was already dead.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(common.RefreshCookieName); err == nil {
		h.service.Logout(r.Context(), cookie.Value)
	}
	h.metrics.AuthOutcome("logout", "ok")
	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt})
}

func (h *Handler) Ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}
