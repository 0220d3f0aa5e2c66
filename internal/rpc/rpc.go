// Package rpc serves typed JSON procedures at /api/rpc/{procedure}.
//
// Queries accept GET (input in the "input" query parameter) or POST; mutations
// accept POST only. Responses use the envelopes
//
//	{"result":{"data":...}}
//	{"error":{"code":"NOT_FOUND","message":"...","httpStatus":404}}
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/parallelhq/parallel/internal/ctxkeys"
	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/validation"
)

const maxInputBytes = 1 << 20

// Tier is the access level a procedure requires.
type Tier int

const (
	Public Tier = iota
	Authenticated
	Subscribed
	Reviewer
)

func (t Tier) String() string {
	switch t {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Subscribed:
		return "subscribed"
	case Reviewer:
		return "reviewer"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

type Kind int

const (
	KindQuery Kind = iota
	KindMutation
)

// EntitlementChecker answers whether a user has an entitled subscription.
type EntitlementChecker interface {
	IsSubscribed(ctx context.Context, userID string) (bool, error)
}

// Call carries the caller of a procedure.
type Call struct {
	Session *model.AuthSession
	User    *model.User // nil for anonymous public calls
	Request *http.Request
}

type handlerFunc func(ctx context.Context, call *Call, raw json.RawMessage) (any, error)

type procedure struct {
	name    string
	tier    Tier
	kind    Kind
	handler handlerFunc
}

type Router struct {
	procedures   map[string]procedure
	entitlements EntitlementChecker
	mapError     ErrorMapper
}

type Option func(*Router)

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(r *Router) {
		r.mapError = mapper
	}
}

func NewRouter(entitlements EntitlementChecker, opts ...Option) *Router {
	r := &Router{
		procedures:   make(map[string]procedure),
		entitlements: entitlements,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Query registers a read procedure.
func Query[In, Out any](r *Router, name string, tier Tier, fn func(ctx context.Context, call *Call, in In) (Out, error)) {
	register(r, name, tier, KindQuery, fn)
}

// Mutation registers a write procedure. Mutations are POST only.
func Mutation[In, Out any](r *Router, name string, tier Tier, fn func(ctx context.Context, call *Call, in In) (Out, error)) {
	register(r, name, tier, KindMutation, fn)
}

func register[In, Out any](r *Router, name string, tier Tier, kind Kind, fn func(ctx context.Context, call *Call, in In) (Out, error)) {
	if _, exists := r.procedures[name]; exists {
		panic("rpc: duplicate procedure " + name)
	}
	r.procedures[name] = procedure{
		name: name,
		tier: tier,
		kind: kind,
		handler: func(ctx context.Context, call *Call, raw json.RawMessage) (any, error) {
			var in In
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return fn(ctx, call, in)
		},
	}
}

func decodeInput(raw json.RawMessage, target any) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed != "" && trimmed != "null" {
		if err := json.Unmarshal([]byte(trimmed), target); err != nil {
			return &Error{Code: CodeBadRequest, Message: "invalid input: " + err.Error(), Err: err}
		}
	}

	v := reflect.ValueOf(target).Elem()
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	if err := validation.Struct(v.Interface()); err != nil {
		return &Error{Code: CodeBadRequest, Message: err.Error(), Err: err}
	}
	return nil
}

// ProcedureInfo describes a registered procedure.
type ProcedureInfo struct {
	Name     string `json:"name"`
	Tier     string `json:"tier"`
	Mutation bool   `json:"mutation"`
}

// Procedures lists the registered procedures sorted by name.
func (r *Router) Procedures() []ProcedureInfo {
	out := make([]ProcedureInfo, 0, len(r.procedures))
	for _, p := range r.procedures {
		out = append(out, ProcedureInfo{Name: p.name, Tier: p.tier.String(), Mutation: p.kind == KindMutation})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("procedure")
	proc, ok := r.procedures[name]
	if !ok {
		writeError(w, Errorf(CodeNotFound, "no procedure named %q", name))
		return
	}

	var raw json.RawMessage
	switch req.Method {
	case http.MethodGet:
		if proc.kind == KindMutation {
			writeError(w, Errorf(CodeMethodNotSupported, "%s is a mutation, use POST", name))
			return
		}
		raw = json.RawMessage(req.URL.Query().Get("input"))
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxInputBytes))
		if err != nil {
			writeError(w, Errorf(CodeBadRequest, "failed to read input"))
			return
		}
		raw = body
	default:
		writeError(w, Errorf(CodeMethodNotSupported, "method %s not supported", req.Method))
		return
	}

	ctx := req.Context()
	call := &Call{Session: ctxkeys.Session(ctx), User: ctxkeys.User(ctx), Request: req}

	if err := r.authorize(ctx, proc, call); err != nil {
		writeError(w, err)
		return
	}

	data, err := proc.handler(ctx, call, raw)
	if err != nil {
		rpcErr := toError(err, r.mapError)
		attrs := []any{"procedure", name, "code", rpcErr.Code, "error", err}
		if call.User != nil {
			attrs = append(attrs, "user_id", call.User.ID)
		}
		if rpcErr.Code == CodeInternalServerError {
			slog.Error("rpc procedure failed", attrs...)
		} else {
			slog.Debug("rpc procedure rejected", attrs...)
		}
		writeError(w, rpcErr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"data": data}})
}

func (r *Router) authorize(ctx context.Context, proc procedure, call *Call) *Error {
	if proc.tier == Public {
		return nil
	}
	if call.User == nil {
		return Errorf(CodeUnauthorized, "authentication required")
	}

	switch proc.tier {
	case Subscribed:
		ok, err := r.entitlements.IsSubscribed(ctx, call.User.ID)
		if err != nil {
			slog.Warn("subscription check failed", "user_id", call.User.ID, "procedure", proc.name, "error", err)
		}
		if !ok {
			return Errorf(CodeForbidden, "an active subscription is required")
		}
	case Reviewer:
		if !call.User.IsReviewer() {
			return Errorf(CodeForbidden, "reviewer access required")
		}
	}
	return nil
}

func writeError(w http.ResponseWriter, err *Error) {
	status := err.Code.HTTPStatus()
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":       err.Code,
			"message":    err.Message,
			"httpStatus": status,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.Error("failed to write rpc response", "error", err)
	}
}
