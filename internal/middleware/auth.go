package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/parallelhq/parallel/internal/ctxkeys"
	"github.com/parallelhq/parallel/internal/model"
)

// SessionCookieName holds the signed session JWT.
const SessionCookieName = "parallel_session"

// SessionResolver turns a session cookie value into a live session.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*model.AuthSession, error)
	ClearSessionCookie(w http.ResponseWriter)
}

// EntitlementChecker answers whether a user has an entitled subscription.
type EntitlementChecker interface {
	IsSubscribed(ctx context.Context, userID string) (bool, error)
}

// Authenticate attaches the session to the request context when the cookie
// resolves. Invalid or revoked cookies are cleared and the request continues
// anonymously.
func Authenticate(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := resolver.ResolveSession(r.Context(), cookie.Value)
			if err != nil {
				slog.Debug("session rejected", "error", err, "path", r.URL.Path)
				resolver.ClearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctxkeys.WithSession(r.Context(), session)))
		})
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) == nil {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

// RequireSubscribed rejects anonymous requests with 401 and users without an
// entitled subscription with 403. Lookup failures count as not subscribed.
func RequireSubscribed(checker EntitlementChecker) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return RequireAuth(func(w http.ResponseWriter, r *http.Request) {
			user := ctxkeys.User(r.Context())
			ok, err := checker.IsSubscribed(r.Context(), user.ID)
			if err != nil {
				slog.Warn("subscription check failed", "user_id", user.ID, "error", err)
			}
			if !ok {
				writeJSONError(w, http.StatusForbidden, "an active subscription is required")
				return
			}
			next(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
