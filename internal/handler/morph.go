package handler

import (
	"context"

	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/rpc"
	"github.com/parallelhq/parallel/internal/service"
)

type MorphHandler struct {
	morphService *service.MorphService
}

func NewMorphHandler(morphService *service.MorphService) *MorphHandler {
	return &MorphHandler{morphService: morphService}
}

func (h *MorphHandler) Register(r *rpc.Router) {
	rpc.Mutation(r, "morphV2.generateMorphsAdmin", rpc.Reviewer, h.generate)
	rpc.Query(r, "morphV2.getMorphs", rpc.Authenticated, h.getMorphs)
}

// generate starts generation in the background and returns the claimed set.
// A second call while one is running fails with CONFLICT.
func (h *MorphHandler) generate(ctx context.Context, call *rpc.Call, in analysisIDInput) (*model.MorphSet, error) {
	return h.morphService.Start(ctx, in.AnalysisID)
}

func (h *MorphHandler) getMorphs(ctx context.Context, call *rpc.Call, in analysisIDInput) (*model.MorphSet, error) {
	return h.morphService.Morphs(call.User, in.AnalysisID)
}
