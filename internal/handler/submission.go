package handler

import (
	"context"

	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/rpc"
	"github.com/parallelhq/parallel/internal/service"
)

type SubmissionHandler struct {
	submissionService *service.SubmissionService
}

func NewSubmissionHandler(submissionService *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService}
}

func (h *SubmissionHandler) Register(r *rpc.Router) {
	rpc.Mutation(r, "photoSubmission.submit", rpc.Authenticated, h.submit)
	rpc.Query(r, "photoSubmission.getMine", rpc.Authenticated, h.getMine)
}

func (h *SubmissionHandler) submit(ctx context.Context, call *rpc.Call, in model.PhotoSet) (*model.PhotoSubmission, error) {
	return h.submissionService.Submit(ctx, call.User, in)
}

func (h *SubmissionHandler) getMine(ctx context.Context, call *rpc.Call, _ struct{}) (*model.PhotoSubmission, error) {
	return h.submissionService.Mine(call.User.ID)
}
