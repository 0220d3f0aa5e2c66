package handler

import (
	"context"
	"net/http"

	"github.com/parallelhq/parallel/internal/ctxkeys"
	"github.com/parallelhq/parallel/internal/rpc"
	"github.com/parallelhq/parallel/internal/service"
)

type JourneyHandler struct {
	journeyService *service.JourneyService
}

func NewJourneyHandler(journeyService *service.JourneyService) *JourneyHandler {
	return &JourneyHandler{journeyService: journeyService}
}

func (h *JourneyHandler) Register(r *rpc.Router) {
	rpc.Query(r, "journey.destination", rpc.Public, h.destination)
}

type destinationInput struct {
	CurrentPath string `json:"currentPath" validate:"max=2048"`
}

type destinationOutput struct {
	Destination string `json:"destination"`
}

func (h *JourneyHandler) destination(ctx context.Context, call *rpc.Call, in destinationInput) (destinationOutput, error) {
	dest := h.journeyService.Destination(ctx, call.Session, in.CurrentPath, call.Request.UserAgent())
	return destinationOutput{Destination: dest}, nil
}

// Redirect sends the browser to the route matching the user's progress.
// The optional "path" query parameter is the page the user is on.
func (h *JourneyHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	session := ctxkeys.Session(r.Context())
	dest := h.journeyService.Destination(r.Context(), session, r.URL.Query().Get("path"), r.UserAgent())
	http.Redirect(w, r, dest, http.StatusSeeOther)
}
