package handler

import (
	"context"

	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/rpc"
	"github.com/parallelhq/parallel/internal/service"
)

type IntakeHandler struct {
	intakeService *service.IntakeService
}

func NewIntakeHandler(intakeService *service.IntakeService) *IntakeHandler {
	return &IntakeHandler{intakeService: intakeService}
}

func (h *IntakeHandler) Register(r *rpc.Router) {
	rpc.Mutation(r, "intake.upsert", rpc.Authenticated, h.upsert)
	rpc.Query(r, "intake.getMine", rpc.Authenticated, h.getMine)
}

func (h *IntakeHandler) upsert(ctx context.Context, call *rpc.Call, in service.IntakeInput) (*model.UserIntake, error) {
	return h.intakeService.Upsert(call.User.ID, in)
}

func (h *IntakeHandler) getMine(ctx context.Context, call *rpc.Call, _ struct{}) (*model.UserIntake, error) {
	return h.intakeService.Mine(call.User.ID)
}
