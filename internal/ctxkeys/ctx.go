package ctxkeys

import (
	"context"

	"github.com/parallelhq/parallel/internal/config"
	"github.com/parallelhq/parallel/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	SessionKey   contextKey = "session"
	ConfigKey    contextKey = "config"
	CSRFTokenKey contextKey = "csrf_token"
	RequestIDKey contextKey = "request_id"
	ClientIPKey  contextKey = "client_ip"
)

// Session returns the authenticated session, or nil for anonymous requests.
func Session(ctx context.Context) *model.AuthSession {
	s, _ := ctx.Value(SessionKey).(*model.AuthSession)
	return s
}

func WithSession(ctx context.Context, s *model.AuthSession) context.Context {
	return context.WithValue(ctx, SessionKey, s)
}

// User is a shorthand for Session(ctx).User.
func User(ctx context.Context) *model.User {
	if s := Session(ctx); s != nil {
		return s.User
	}
	return nil
}

func Config(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(ConfigKey).(*config.Config)
	return cfg
}

func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, ConfigKey, cfg)
}

func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(CSRFTokenKey).(string)
	return token
}

func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, CSRFTokenKey, token)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ClientIPKey).(string)
	return ip
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}
