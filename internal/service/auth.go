package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/parallelhq/parallel/internal/middleware"
	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrSessionInvalid     = errors.New("session is invalid or expired")
	ErrPasswordlessLogin  = errors.New("this account signs in with Google")
)

// SessionMeta describes the client that opened a session.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

type AuthService struct {
	userRepository    repository.UserRepository
	accountRepository repository.AccountRepository
	sessionRepository repository.SessionRepository
	emailService      *EmailService
	jwtSecret         string
	sessionExpiry     time.Duration
	isProduction      bool
	isReviewerEmail   func(string) bool
	now               func() time.Time
}

func NewAuthService(
	userRepository repository.UserRepository,
	accountRepository repository.AccountRepository,
	sessionRepository repository.SessionRepository,
	emailService *EmailService,
	jwtSecret string,
	sessionExpiry time.Duration,
	isProduction bool,
	isReviewerEmail func(string) bool,
) *AuthService {
	if isReviewerEmail == nil {
		isReviewerEmail = func(string) bool { return false }
	}
	return &AuthService{
		userRepository:    userRepository,
		accountRepository: accountRepository,
		sessionRepository: sessionRepository,
		emailService:      emailService,
		jwtSecret:         jwtSecret,
		sessionExpiry:     sessionExpiry,
		isProduction:      isProduction,
		isReviewerEmail:   isReviewerEmail,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// SignUp creates a user with a credential account.
func (s *AuthService) SignUp(ctx context.Context, name, email, password string) (*model.User, error) {
	email = validation.NormalizeEmail(email)
	name = strings.TrimSpace(name)

	if err := validation.ValidateEmail(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.createUser(name, email, false, nil)
	if err != nil {
		return nil, err
	}

	if err := s.linkAccount(user.ID, model.ProviderCredential, email, &hash); err != nil {
		return nil, err
	}

	if err := s.emailService.SendWelcomeEmail(ctx, user.Email, user.Name); err != nil {
		slog.Warn("failed to send welcome email", "error", err, "user_id", user.ID)
	}

	slog.Info("user signed up", "user_id", user.ID, "provider", model.ProviderCredential)
	return user, nil
}

// SignIn checks an email/password pair against the credential account.
func (s *AuthService) SignIn(email, password string) (*model.User, error) {
	email = validation.NormalizeEmail(email)

	account, err := s.accountRepository.ByProvider(model.ProviderCredential, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		if _, uerr := s.userRepository.ByEmail(email); uerr == nil {
			return nil, ErrPasswordlessLogin
		}
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if !account.HasPassword() || s.ComparePassword(password, *account.PasswordHash) != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepository.ByID(account.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	s.promoteReviewer(user)
	return user, nil
}

// OAuthProfile is the identity returned by an OAuth provider.
type OAuthProfile struct {
	Provider string
	Subject  string
	Email    string
	Name     string
	Picture  string
	Verified bool
}

// AuthenticateOAuth signs in through an external provider. Unknown subjects
// are linked to an existing user with the same verified email, or create a
// new user.
func (s *AuthService) AuthenticateOAuth(ctx context.Context, p OAuthProfile) (*model.User, error) {
	account, err := s.accountRepository.ByProvider(p.Provider, p.Subject)
	if err == nil {
		user, err := s.userRepository.ByID(account.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		s.promoteReviewer(user)
		slog.Info("user authenticated via OAuth", "user_id", user.ID, "provider", p.Provider)
		return user, nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	email := validation.NormalizeEmail(p.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, ErrInvalidEmail
	}

	user, err := s.userRepository.ByEmail(email)
	switch {
	case err == nil:
		if !p.Verified {
			return nil, fmt.Errorf("refusing to link unverified %s email: %w", p.Provider, ErrEmailAlreadyExists)
		}
		if !user.EmailVerified {
			user.EmailVerified = true
			if err := s.userRepository.Update(user); err != nil {
				slog.Warn("failed to mark email as verified", "error", err, "user_id", user.ID)
			}
		}
	case errors.Is(err, repository.ErrUserNotFound):
		var image *string
		if p.Picture != "" {
			image = &p.Picture
		}
		user, err = s.createUser(strings.TrimSpace(p.Name), email, p.Verified, image)
		if err != nil {
			return nil, err
		}
		if err := s.emailService.SendWelcomeEmail(ctx, user.Email, user.Name); err != nil {
			slog.Warn("failed to send welcome email", "error", err, "user_id", user.ID)
		}
	default:
		return nil, fmt.Errorf("failed to lookup user: %w", err)
	}

	if err := s.linkAccount(user.ID, p.Provider, p.Subject, nil); err != nil {
		return nil, err
	}

	slog.Info("OAuth account linked", "user_id", user.ID, "provider", p.Provider)
	return user, nil
}

func (s *AuthService) createUser(name, email string, verified bool, image *string) (*model.User, error) {
	now := s.now()
	role := model.RoleUser
	if s.isReviewerEmail(email) {
		role = model.RoleReviewer
	}

	user := &model.User{
		ID:            uuid.New().String(),
		Name:          name,
		Email:         email,
		EmailVerified: verified,
		Image:         image,
		Role:          role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.userRepository.Create(user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, ErrEmailAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *AuthService) linkAccount(userID, provider, subject string, passwordHash *string) error {
	now := s.now()
	err := s.accountRepository.Create(&model.Account{
		ID:           uuid.New().String(),
		UserID:       userID,
		ProviderID:   provider,
		AccountID:    subject,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, repository.ErrDuplicateAccount) {
		return ErrEmailAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// promoteReviewer grants the reviewer role to users listed in REVIEWER_EMAILS.
func (s *AuthService) promoteReviewer(user *model.User) {
	if user.Role != model.RoleUser || !s.isReviewerEmail(user.Email) {
		return
	}
	if err := s.userRepository.SetRole(user.ID, model.RoleReviewer); err != nil {
		slog.Warn("failed to promote reviewer", "error", err, "user_id", user.ID)
		return
	}
	user.Role = model.RoleReviewer
	slog.Info("user promoted to reviewer", "user_id", user.ID)
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// CreateSession stores a session row and returns the signed cookie value.
func (s *AuthService) CreateSession(user *model.User, meta SessionMeta) (string, time.Time, error) {
	now := s.now()
	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.sessionExpiry),
		IPAddress: meta.IPAddress,
		UserAgent: truncate(meta.UserAgent, 512),
		CreatedAt: now,
	}
	if err := s.sessionRepository.Create(session); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.signSession(session)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, session.ExpiresAt, nil
}

func (s *AuthService) signSession(session *model.Session) (string, error) {
	claims := jwt.MapClaims{
		"sid": session.ID,
		"sub": session.UserID,
		"exp": session.ExpiresAt.Unix(),
		"iat": session.CreatedAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *AuthService) verifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrSessionInvalid
	}
	return claims, nil
}

// ResolveSession verifies the cookie signature and checks the session row,
// so deleted sessions are rejected even while the JWT has not expired.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*model.AuthSession, error) {
	claims, err := s.verifyJWT(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}

	sid, _ := claims["sid"].(string)
	sub, _ := claims["sub"].(string)
	if sid == "" || sub == "" {
		return nil, ErrSessionInvalid
	}

	session, err := s.sessionRepository.ByID(sid)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.UserID != sub || session.IsExpired(s.now()) {
		return nil, ErrSessionInvalid
	}

	user, err := s.userRepository.ByID(session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	return &model.AuthSession{Session: session, User: user}, nil
}

// SignOut revokes the session named by the cookie. Unknown tokens are ignored.
func (s *AuthService) SignOut(token string) error {
	claims, err := s.verifyJWT(token)
	if err != nil {
		return nil
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return nil
	}
	return s.sessionRepository.Delete(sid)
}

// PurgeExpiredSessions deletes sessions past their expiry.
func (s *AuthService) PurgeExpiredSessions() (int64, error) {
	return s.sessionRepository.DeleteExpired(s.now())
}

func (s *AuthService) SetSessionCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
