package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/parallelhq/parallel/internal/config"
	"github.com/parallelhq/parallel/internal/ctxkeys"
	"github.com/parallelhq/parallel/internal/middleware"
	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/service"
)

const (
	oauthStateCookie   = "oauth_state"
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v3/userinfo"
	oauthFailedRoute   = service.RouteAuth + "?error=oauth"
	oauthCompleteRoute = "/api/redirect"
)

type AuthHandler struct {
	authService       *service.AuthService
	googleOAuthConfig *oauth2.Config
	googleUserInfoURL string
	isProduction      bool
}

func NewAuthHandler(authService *service.AuthService, cfg *config.Config) *AuthHandler {
	h := &AuthHandler{
		authService:       authService,
		googleUserInfoURL: googleUserInfoURL,
		isProduction:      cfg.IsProduction(),
	}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		h.googleOAuthConfig = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.AppURL + "/api/auth/google/callback",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	return h
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User      *model.User    `json:"user"`
	Session   *model.Session `json:"session,omitempty"`
	CSRFToken string         `json:"csrfToken,omitempty"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.authService.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		// Remaining errors are validation messages meant for the user
		slog.Warn("sign up failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.startSession(w, r, user, http.StatusCreated)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.authService.SignIn(req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		slog.Warn("password sign in failed", "ip", middleware.ClientIP(r))
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, service.ErrPasswordlessLogin):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("sign in failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sign in failed")
		return
	}

	h.startSession(w, r, user, http.StatusOK)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User, status int) {
	token, expiry, err := h.authService.CreateSession(user, service.SessionMeta{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		slog.Error("failed to create session", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.authService.SetSessionCookie(w, token, expiry)

	slog.Info("session started", "user_id", user.ID)
	writeJSON(w, status, sessionResponse{User: user})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		if err := h.authService.SignOut(cookie.Value); err != nil {
			slog.Error("failed to revoke session", "error", err)
		}
	}
	h.authService.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Session returns the current session, or null when signed out.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	session := ctxkeys.Session(r.Context())
	if session == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		User:      session.User,
		Session:   session.Session,
		CSRFToken: ctxkeys.CSRFToken(r.Context()),
	})
}

// GoogleAuth redirects to the Google consent screen.
func (h *AuthHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	if h.googleOAuthConfig == nil {
		writeError(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}

	state := generateOAuthState()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})

	http.Redirect(w, r, h.googleOAuthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback finishes the OAuth flow and sends the user on through the
// journey redirect.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.googleOAuthConfig == nil {
		writeError(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}

	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || cookie.Value != state {
		slog.Warn("google oauth state validation failed", "error", err)
		http.Redirect(w, r, oauthFailedRoute, http.StatusSeeOther)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("google oauth callback missing code")
		http.Redirect(w, r, oauthFailedRoute, http.StatusSeeOther)
		return
	}

	profile, err := h.googleProfile(r, code)
	if err != nil {
		slog.Error("google oauth failed", "error", err)
		http.Redirect(w, r, oauthFailedRoute, http.StatusSeeOther)
		return
	}

	user, err := h.authService.AuthenticateOAuth(r.Context(), profile)
	if err != nil {
		slog.Error("oauth authentication failed", "error", err, "provider", profile.Provider)
		http.Redirect(w, r, oauthFailedRoute, http.StatusSeeOther)
		return
	}

	token, expiry, err := h.authService.CreateSession(user, service.SessionMeta{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		slog.Error("failed to create session", "error", err, "user_id", user.ID)
		http.Redirect(w, r, oauthFailedRoute, http.StatusSeeOther)
		return
	}
	h.authService.SetSessionCookie(w, token, expiry)

	slog.Info("user signed in with google", "user_id", user.ID)
	http.Redirect(w, r, oauthCompleteRoute, http.StatusSeeOther)
}

func (h *AuthHandler) googleProfile(r *http.Request, code string) (service.OAuthProfile, error) {
	token, err := h.googleOAuthConfig.Exchange(r.Context(), code)
	if err != nil {
		return service.OAuthProfile{}, err
	}

	resp, err := h.googleOAuthConfig.Client(r.Context(), token).Get(h.googleUserInfoURL)
	if err != nil {
		return service.OAuthProfile{}, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return service.OAuthProfile{}, errors.New("google userinfo returned " + resp.Status)
	}

	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return service.OAuthProfile{}, err
	}
	if info.Sub == "" {
		return service.OAuthProfile{}, errors.New("google userinfo without subject")
	}

	return service.OAuthProfile{
		Provider: model.ProviderGoogle,
		Subject:  info.Sub,
		Email:    info.Email,
		Name:     info.Name,
		Picture:  info.Picture,
		Verified: info.EmailVerified,
	}, nil
}

// generateOAuthState creates a random state token for OAuth CSRF protection.
func generateOAuthState() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate oauth state: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
