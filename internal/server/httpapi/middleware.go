package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dkuzmenko/authd/internal/common"
	"github.com/dkuzmenko/authd/internal/server/models"
)

type contextKey int

const userContextKey contextKey = iota

// UserFromContext returns the user resolved by the Authenticate middleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userContextKey).(*models.User)
	return u, ok
}

// Authenticate guards a route with bearer access-token validation. Every
// rejection is a uniform 401; the concrete reason is only logged, never sent
// to the caller.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			h.metrics.AuthOutcome("authorize", "denied")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := h.service.Authorize(r.Context(), token)
		if err != nil {
			h.metrics.AuthOutcome("authorize", "denied")
			h.logger.Debug(r.Context(), "bearer rejected", "reason", err)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		h.metrics.AuthOutcome("authorize", "ok")
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}
