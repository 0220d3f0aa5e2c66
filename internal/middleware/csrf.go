package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/parallelhq/parallel/internal/ctxkeys"
)

const (
	csrfCookieName = "csrf_token"
	csrfFormField  = "csrf_token"
	csrfHeader     = "X-CSRF-Token"
	csrfTokenLen   = 32
)

// csrfExemptPrefixes receive signed calls from third parties.
var csrfExemptPrefixes = []string{
	"/webhooks/",
}

// CSRFProtection implements the double-submit cookie pattern. Safe methods
// receive the token cookie; state-changing methods must echo it in the
// X-CSRF-Token header (or a csrf_token form field for multipart uploads).
func CSRFProtection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range csrfExemptPrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		token := csrfToken(w, r)
		ctx := ctxkeys.WithCSRFToken(r.Context(), token)

		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		submitted := r.Header.Get(csrfHeader)
		if submitted == "" && strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			submitted = r.PostFormValue(csrfFormField)
		}

		if !validCSRFToken(token, submitted) {
			slog.Warn("csrf validation failed",
				"path", r.URL.Path,
				"method", r.Method,
				"ip", ClientIP(r),
			)
			writeJSONError(w, http.StatusForbidden, "invalid csrf token")
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// csrfToken returns the cookie token, issuing a new one when absent or malformed.
// The cookie is readable by scripts so the client can echo it back.
func csrfToken(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err == nil && len(cookie.Value) == base64.RawURLEncoding.EncodedLen(csrfTokenLen) {
		return cookie.Value
	}

	token := generateCSRFToken()

	cfg := ctxkeys.Config(r.Context())
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Secure:   cfg != nil && cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400 * 7,
	})
	return token
}

func generateCSRFToken() string {
	b := make([]byte, csrfTokenLen)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate csrf token: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func validCSRFToken(expected, actual string) bool {
	if expected == "" || actual == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}
