package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/testsupport"
)

func TestCreateAnalysisGates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testsupport.NewUser(t, env.conn, "gates@example.com")

	if _, err := env.analysisService.Create(ctx, user.ID, testsupport.Photos()); !errors.Is(err, ErrIntakeRequired) {
		t.Fatalf("without intake: err = %v, want ErrIntakeRequired", err)
	}

	testsupport.NewIntake(t, env.conn, user.ID)
	if _, err := env.analysisService.Create(ctx, user.ID, testsupport.Photos()); !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("without subscription: err = %v, want ErrNotSubscribed", err)
	}

	testsupport.NewSubscription(t, env.conn, user.ID, model.SubscriptionStatusActive)
	bad := testsupport.Photos()
	bad.SkinURL = "ftp://nope"
	if _, err := env.analysisService.Create(ctx, user.ID, bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad photos: err = %v, want ErrInvalidInput", err)
	}

	analysis, err := env.analysisService.Create(ctx, user.ID, testsupport.Photos())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if analysis.Status != model.AnalysisStatusInProgress {
		t.Fatalf("status = %q", analysis.Status)
	}

	if _, err := env.analysisService.Create(ctx, user.ID, testsupport.Photos()); !errors.Is(err, ErrAnalysisExists) {
		t.Fatalf("second create: err = %v, want ErrAnalysisExists", err)
	}
}

func TestPastDueIsSubscribed(t *testing.T) {
	env := newTestEnv(t)
	user := testsupport.NewUser(t, env.conn, "pastdue@example.com")
	testsupport.NewSubscription(t, env.conn, user.ID, model.SubscriptionStatusPastDue)

	ok, err := env.subscriptionService.IsSubscribed(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("IsSubscribed: %v", err)
	}
	if !ok {
		t.Fatal("past_due should be treated as subscribed")
	}
}

func TestCheckCompletionOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := testsupport.NewUser(t, env.conn, "owner@example.com")
	other := testsupport.NewUser(t, env.conn, "other@example.com")
	analysis := testsupport.NewAnalysis(t, env.conn, owner.ID)

	got, err := env.analysisService.CheckCompletion(owner.ID, analysis.ID)
	if err != nil {
		t.Fatalf("CheckCompletion: %v", err)
	}
	if got.AnalysisID != analysis.ID || got.Status != model.AnalysisStatusInProgress {
		t.Fatalf("got %+v", got)
	}

	got, err = env.analysisService.CheckCompletion(other.ID, analysis.ID)
	if !errors.Is(err, repository.ErrAnalysisNotFound) || got != nil {
		t.Fatalf("foreign CheckCompletion = %+v, %v; want not found", got, err)
	}
}

func TestAdvanceIsForwardOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testsupport.NewUser(t, env.conn, "advance@example.com")
	analysis := testsupport.NewAnalysis(t, env.conn, user.ID)

	got, err := env.analysisService.Advance(ctx, analysis.ID, model.AnalysisStatusReady)
	if err != nil || got.Status != model.AnalysisStatusReady {
		t.Fatalf("to ready: %+v, %v", got, err)
	}

	if _, err := env.analysisService.Advance(ctx, analysis.ID, model.AnalysisStatusInProgress); !errors.Is(err, ErrStatusRegression) {
		t.Fatalf("backward: err = %v, want ErrStatusRegression", err)
	}

	if got, err := env.analysisService.Advance(ctx, analysis.ID, model.AnalysisStatusReady); err != nil || got.Status != model.AnalysisStatusReady {
		t.Fatalf("same status should be a no-op: %+v, %v", got, err)
	}

	if _, err := env.analysisService.Advance(ctx, analysis.ID, model.AnalysisStatusComplete); err != nil {
		t.Fatalf("to complete: %v", err)
	}
	if _, err := env.analysisService.Advance(ctx, analysis.ID, "archived"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown status: err = %v, want ErrInvalidInput", err)
	}

	stored, err := env.analyses.ByID(analysis.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if stored.Status != model.AnalysisStatusComplete {
		t.Fatalf("stored status = %q", stored.Status)
	}
}

func TestWithContentVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testsupport.NewUser(t, env.conn, "report@example.com")
	analysis := testsupport.NewAnalysis(t, env.conn, user.ID)

	if _, err := env.analysisService.UpsertSection(SectionInput{
		AnalysisID:  analysis.ID,
		SectionKey:  "jaw_chin",
		Explanation: "A **strong** chin.",
	}); err != nil {
		t.Fatalf("UpsertSection: %v", err)
	}
	if _, err := env.morphs.Claim(analysis.ID, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	rep, err := env.analysisService.WithContent(user.ID, analysis.ID)
	if err != nil {
		t.Fatalf("WithContent: %v", err)
	}
	if len(rep.Subtabs) != 0 || rep.Morphs != nil {
		t.Fatalf("in progress report leaked content: %d subtabs, morphs=%v", len(rep.Subtabs), rep.Morphs)
	}

	if _, err := env.analysisService.Advance(ctx, analysis.ID, model.AnalysisStatusReady); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	rep, err = env.analysisService.WithContent(user.ID, analysis.ID)
	if err != nil {
		t.Fatalf("WithContent: %v", err)
	}
	if len(rep.Subtabs) != len(model.SectionTaxonomy) {
		t.Fatalf("subtabs = %d, want %d", len(rep.Subtabs), len(model.SectionTaxonomy))
	}
	var found *ReportSection
	total := 0
	for _, tab := range rep.Subtabs {
		total += len(tab.Sections)
		for i := range tab.Sections {
			if tab.Sections[i].Key == "jaw_chin" {
				found = &tab.Sections[i]
			}
		}
	}
	if total != model.SectionCount() {
		t.Fatalf("sections = %d, want %d", total, model.SectionCount())
	}
	if found == nil || !found.Filled || !strings.Contains(found.ExplanationHTML, "<strong>strong</strong>") || found.Title != "Jaw Chin" {
		t.Fatalf("jaw_chin section = %+v", found)
	}
	if rep.Morphs != nil {
		t.Fatal("morphs shown before complete")
	}

	if _, err := env.analysisService.Advance(ctx, analysis.ID, model.AnalysisStatusComplete); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	rep, err = env.analysisService.WithContent(user.ID, analysis.ID)
	if err != nil {
		t.Fatalf("WithContent: %v", err)
	}
	if rep.Morphs == nil {
		t.Fatal("morphs missing on complete analysis")
	}

	other := testsupport.NewUser(t, env.conn, "snoop@example.com")
	if _, err := env.analysisService.WithContent(other.ID, analysis.ID); !errors.Is(err, repository.ErrAnalysisNotFound) {
		t.Fatalf("foreign WithContent err = %v", err)
	}
}

func TestUpsertSectionValidation(t *testing.T) {
	env := newTestEnv(t)
	user := testsupport.NewUser(t, env.conn, "sections@example.com")
	analysis := testsupport.NewAnalysis(t, env.conn, user.ID)

	_, err := env.analysisService.UpsertSection(SectionInput{AnalysisID: analysis.ID, SectionKey: "not_a_section"})
	if !errors.Is(err, ErrInvalidInput) || !strings.Contains(err.Error(), "sectionKey") {
		t.Fatalf("err = %v, want sectionKey validation error", err)
	}
}

func TestSubmissionConvert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testsupport.NewUser(t, env.conn, "submit@example.com")

	sub, err := env.submissionService.Submit(ctx, user, testsupport.Photos())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// Resubmitting replaces the photos of the single pending row
	photos := testsupport.Photos()
	photos.FrontURL = "https://cdn.example.com/front-2.jpg"
	sub, err = env.submissionService.Submit(ctx, user, photos)
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if sub.FrontURL != photos.FrontURL || !sub.IsPending() {
		t.Fatalf("submission = %+v", sub)
	}

	analysis, err := env.submissionService.Convert(sub.ID)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if analysis.UserID != user.ID || analysis.FrontURL != photos.FrontURL {
		t.Fatalf("analysis = %+v", analysis)
	}

	if _, err := env.submissionService.Convert(sub.ID); !errors.Is(err, ErrSubmissionConverted) {
		t.Fatalf("second Convert: err = %v", err)
	}
	if _, err := env.submissionService.Submit(ctx, user, testsupport.Photos()); !errors.Is(err, ErrSubmissionConverted) {
		t.Fatalf("Submit after convert: err = %v", err)
	}
}
