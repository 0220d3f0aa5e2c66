package handler

import (
	"errors"

	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/rpc"
	"github.com/parallelhq/parallel/internal/service"
)

// ProcedureRegistrar adds its procedures to the RPC router.
type ProcedureRegistrar interface {
	Register(r *rpc.Router)
}

// MapServiceError translates service and repository errors into RPC codes.
func MapServiceError(err error) *rpc.Error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return rpc.Wrap(rpc.CodeBadRequest, err)

	case errors.Is(err, repository.ErrAnalysisNotFound),
		errors.Is(err, repository.ErrSubmissionNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrIntakeNotFound),
		errors.Is(err, repository.ErrMorphSetNotFound):
		return rpc.Wrap(rpc.CodeNotFound, err)

	case errors.Is(err, service.ErrIntakeRequired),
		errors.Is(err, service.ErrNotSubscribed):
		return rpc.Wrap(rpc.CodeForbidden, err)

	case errors.Is(err, service.ErrAnalysisExists),
		errors.Is(err, service.ErrStatusRegression),
		errors.Is(err, service.ErrStatusConflict),
		errors.Is(err, service.ErrGenerationInProgress),
		errors.Is(err, service.ErrSubmissionConverted):
		return rpc.Wrap(rpc.CodeConflict, err)
	}
	return nil
}

// NewRPCRouter builds the router with every registrar's procedures.
func NewRPCRouter(entitlements rpc.EntitlementChecker, registrars ...ProcedureRegistrar) *rpc.Router {
	r := rpc.NewRouter(entitlements, rpc.WithErrorMapper(MapServiceError))
	for _, reg := range registrars {
		reg.Register(r)
	}
	return r
}
