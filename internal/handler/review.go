package handler

import (
	"context"

	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/rpc"
	"github.com/parallelhq/parallel/internal/service"
)

// ReviewHandler serves the reviewer dashboard.
type ReviewHandler struct {
	analysisService   *service.AnalysisService
	submissionService *service.SubmissionService
}

func NewReviewHandler(analysisService *service.AnalysisService, submissionService *service.SubmissionService) *ReviewHandler {
	return &ReviewHandler{
		analysisService:   analysisService,
		submissionService: submissionService,
	}
}

func (h *ReviewHandler) Register(r *rpc.Router) {
	rpc.Query(r, "review.listAnalyses", rpc.Reviewer, h.listAnalyses)
	rpc.Query(r, "review.getAnalysis", rpc.Reviewer, h.getAnalysis)
	rpc.Mutation(r, "review.advanceStatus", rpc.Reviewer, h.advanceStatus)
	rpc.Mutation(r, "review.upsertSectionContent", rpc.Reviewer, h.upsertSectionContent)
	rpc.Query(r, "review.listSubmissions", rpc.Reviewer, h.listSubmissions)
	rpc.Mutation(r, "review.convertSubmission", rpc.Reviewer, h.convertSubmission)
	rpc.Query(r, "review.sectionTaxonomy", rpc.Reviewer, h.sectionTaxonomy)
}

type listAnalysesInput struct {
	Status string `json:"status" validate:"omitempty,analysisstatus"`
	Limit  int    `json:"limit" validate:"min=0,max=200"`
}

func (h *ReviewHandler) listAnalyses(ctx context.Context, call *rpc.Call, in listAnalysesInput) ([]*model.Analysis, error) {
	analyses, err := h.analysisService.Analyses(in.Status, in.Limit)
	if analyses == nil && err == nil {
		analyses = []*model.Analysis{}
	}
	return analyses, err
}

func (h *ReviewHandler) getAnalysis(ctx context.Context, call *rpc.Call, in analysisIDInput) (*service.AnalysisReport, error) {
	return h.analysisService.Report(in.AnalysisID)
}

type advanceStatusInput struct {
	AnalysisID string `json:"analysisId" validate:"required,uuid"`
	Status     string `json:"status" validate:"required,analysisstatus"`
}

func (h *ReviewHandler) advanceStatus(ctx context.Context, call *rpc.Call, in advanceStatusInput) (*model.Analysis, error) {
	return h.analysisService.Advance(ctx, in.AnalysisID, in.Status)
}

func (h *ReviewHandler) upsertSectionContent(ctx context.Context, call *rpc.Call, in service.SectionInput) (*model.AnalysisSectionContent, error) {
	return h.analysisService.UpsertSection(in)
}

type listSubmissionsInput struct {
	Status string `json:"status" validate:"omitempty,oneof=pending converted"`
	Limit  int    `json:"limit" validate:"min=0,max=200"`
}

func (h *ReviewHandler) listSubmissions(ctx context.Context, call *rpc.Call, in listSubmissionsInput) ([]*model.PhotoSubmission, error) {
	subs, err := h.submissionService.Submissions(in.Status, in.Limit)
	if subs == nil && err == nil {
		subs = []*model.PhotoSubmission{}
	}
	return subs, err
}

type convertSubmissionInput struct {
	SubmissionID string `json:"submissionId" validate:"required,uuid"`
}

func (h *ReviewHandler) convertSubmission(ctx context.Context, call *rpc.Call, in convertSubmissionInput) (*model.Analysis, error) {
	return h.submissionService.Convert(in.SubmissionID)
}

type taxonomySubtab struct {
	Key      string            `json:"key"`
	Title    string            `json:"title"`
	Sections []taxonomySection `json:"sections"`
}

type taxonomySection struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

func (h *ReviewHandler) sectionTaxonomy(ctx context.Context, call *rpc.Call, _ struct{}) ([]taxonomySubtab, error) {
	out := make([]taxonomySubtab, 0, len(model.SectionTaxonomy))
	for _, tab := range model.SectionTaxonomy {
		st := taxonomySubtab{Key: tab.Key, Title: service.Title(tab.Key)}
		for _, key := range tab.Sections {
			st.Sections = append(st.Sections, taxonomySection{Key: key, Title: service.Title(key)})
		}
		out = append(out, st)
	}
	return out, nil
}
