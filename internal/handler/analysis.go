package handler

import (
	"context"

	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/rpc"
	"github.com/parallelhq/parallel/internal/service"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

func (h *AnalysisHandler) Register(r *rpc.Router) {
	rpc.Mutation(r, "analysis.create", rpc.Subscribed, h.create)
	rpc.Query(r, "analysis.getFirstAnalysis", rpc.Authenticated, h.getFirst)
	rpc.Query(r, "analysis.checkAnalysisCompletion", rpc.Authenticated, h.checkCompletion)
	rpc.Query(r, "analysis.getAnalysisWithContent", rpc.Authenticated, h.getWithContent)
}

type analysisIDInput struct {
	AnalysisID string `json:"analysisId" validate:"required,uuid"`
}

func (h *AnalysisHandler) create(ctx context.Context, call *rpc.Call, in model.PhotoSet) (*model.Analysis, error) {
	return h.analysisService.Create(ctx, call.User.ID, in)
}

func (h *AnalysisHandler) getFirst(ctx context.Context, call *rpc.Call, _ struct{}) (*model.Analysis, error) {
	return h.analysisService.First(call.User.ID)
}

func (h *AnalysisHandler) checkCompletion(ctx context.Context, call *rpc.Call, in analysisIDInput) (*service.Completion, error) {
	return h.analysisService.CheckCompletion(call.User.ID, in.AnalysisID)
}

func (h *AnalysisHandler) getWithContent(ctx context.Context, call *rpc.Call, in analysisIDInput) (*service.AnalysisReport, error) {
	return h.analysisService.WithContent(call.User.ID, in.AnalysisID)
}
