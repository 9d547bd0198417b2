// Package middleware holds the HTTP middlewares specific to the API surface:
// session parsing and rate limiting.
package middleware

import (
	"context"
	"net/http"

	"github.com/slotlink/api/internal/http/response"
	"github.com/slotlink/api/pkg/logger"
	"github.com/slotlink/api/pkg/session"
)

// SessionCookie is the credential issued by the login handshake.
const SessionCookie = "sl_session"

type ctxKey string

const ctxClaims ctxKey = "claims"

// ParseSession attaches session claims to the context when the cookie is
// present and valid. Anonymous requests pass through untouched.
func ParseSession(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := sessions.Verify(cookie.Value)
			if err != nil {
				// stale or tampered cookie, treat as anonymous
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ctxClaims, claims)
			ctx = context.WithValue(ctx, logger.UserIDKey, claims.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests that carry no valid session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Claims(r) == nil {
			response.Unauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func Claims(r *http.Request) *session.Claims {
	v := r.Context().Value(ctxClaims)
	if v == nil {
		return nil
	}
	return v.(*session.Claims)
}
