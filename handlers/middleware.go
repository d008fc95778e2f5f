package handlers

import (
	"context"
	"net/http"

	"github.com/koas-web/koasbackend/sessions"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

// IdentityContextKey is the key used to store the authenticated identity in
// the request context.
const IdentityContextKey ContextKey = "identity"

// RequireSession gates routes on a valid admin session. the resolved
// identity is placed in the request context for downstream handlers.
func RequireSession(mgr *sessions.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := mgr.Current(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
				return
			}
			ctx := context.WithValue(r.Context(), IdentityContextKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identityFromContext returns the identity stored by RequireSession.
func identityFromContext(r *http.Request) (sessions.Identity, bool) {
	ident, ok := r.Context().Value(IdentityContextKey).(sessions.Identity)
	return ident, ok
}
