package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/parallelhq/parallel/internal/app"
	"github.com/parallelhq/parallel/internal/config"
	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/testsupport"
)

type cliTestEnv struct {
	cfg  *config.Config
	conn *sqlx.DB
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	return &cliTestEnv{
		cfg:  testsupport.Config(),
		conn: testsupport.MustOpenDB(t),
	}
}

func (e *cliTestEnv) commandContext() *commandContext {
	return &commandContext{
		loadConfig: func() *config.Config { return e.cfg },
		openApp: func(ctx context.Context, cfg *config.Config) (*app.App, error) {
			return app.Wire(cfg, e.conn, testsupport.NewMemStorage())
		},
		openDB: func(cfg *config.Config) (*sqlx.DB, error) {
			return e.conn, nil
		},
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(env.commandContext())
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, out)
	}
}

func TestAnalysesListAndAdvance(t *testing.T) {
	env := setupCLITestEnv(t)
	user := testsupport.NewUser(t, env.conn, "owner@example.com")
	analysis := testsupport.NewAnalysis(t, env.conn, user.ID)

	out, err := runCLI(t, env, "analyses", "list")
	if err != nil {
		t.Fatalf("analyses list: %v", err)
	}
	requireContains(t, out, analysis.ID)
	requireContains(t, out, model.AnalysisStatusInProgress)

	out, err = runCLI(t, env, "analyses", "advance", analysis.ID, model.AnalysisStatusReady)
	if err != nil {
		t.Fatalf("analyses advance: %v", err)
	}
	requireContains(t, out, "is now ready")

	if _, err := runCLI(t, env, "analyses", "advance", analysis.ID, model.AnalysisStatusInProgress); err == nil {
		t.Fatal("expected backwards advance to fail")
	}

	out, err = runCLI(t, env, "--json", "analyses", "list", "--status", model.AnalysisStatusReady)
	if err != nil {
		t.Fatalf("analyses list --json: %v", err)
	}
	var listed []model.Analysis
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(listed) != 1 || listed[0].Status != model.AnalysisStatusReady {
		t.Fatalf("unexpected listing: %+v", listed)
	}
}

func TestAnalysesAdvanceRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := runCLI(t, env, "analyses", "advance", "some-id", "shipped")
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestSubmissionsConvert(t *testing.T) {
	env := setupCLITestEnv(t)
	user := testsupport.NewUser(t, env.conn, "submitter@example.com")

	sub := &model.PhotoSubmission{
		ID:       "11111111-1111-4111-8111-111111111111",
		UserID:   user.ID,
		PhotoSet: testsupport.Photos(),
		Status:   model.SubmissionStatusPending,
	}
	if err := repository.NewSubmissionRepository(env.conn).Upsert(sub); err != nil {
		t.Fatalf("create submission: %v", err)
	}

	out, err := runCLI(t, env, "submissions", "list")
	if err != nil {
		t.Fatalf("submissions list: %v", err)
	}
	requireContains(t, out, sub.ID)

	out, err = runCLI(t, env, "submissions", "convert", sub.ID)
	if err != nil {
		t.Fatalf("submissions convert: %v", err)
	}
	requireContains(t, out, "Created analysis")

	if _, err := runCLI(t, env, "submissions", "convert", sub.ID); err == nil {
		t.Fatal("expected second convert to fail")
	}

	out, err = runCLI(t, env, "submissions", "list")
	if err != nil {
		t.Fatalf("submissions list: %v", err)
	}
	requireContains(t, out, "No submissions")
}

func TestMorphsGenerateRecordsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	user := testsupport.NewUser(t, env.conn, "morph@example.com")
	analysis := testsupport.NewAnalysis(t, env.conn, user.ID)

	out, err := runCLI(t, env, "morphs", "generate", analysis.ID)
	if err != nil {
		t.Fatalf("morphs generate: %v", err)
	}
	requireContains(t, out, model.MorphStatusFailed)
	for _, variant := range model.MorphVariants {
		requireContains(t, out, variant)
	}
}

func TestUsersSetRole(t *testing.T) {
	env := setupCLITestEnv(t)
	user := testsupport.NewUser(t, env.conn, "promote@example.com")

	out, err := runCLI(t, env, "users", "set-role", "Promote@example.com", model.RoleReviewer)
	if err != nil {
		t.Fatalf("users set-role: %v", err)
	}
	requireContains(t, out, "is now reviewer")

	updated, err := repository.NewUserRepository(env.conn).ByID(user.ID)
	if err != nil {
		t.Fatalf("lookup user: %v", err)
	}
	if updated.Role != model.RoleReviewer {
		t.Fatalf("expected reviewer role, got %s", updated.Role)
	}

	if _, err := runCLI(t, env, "users", "set-role", "promote@example.com", "owner"); err == nil {
		t.Fatal("expected unknown role to fail")
	}
	if _, err := runCLI(t, env, "users", "set-role", "missing@example.com", model.RoleAdmin); err == nil {
		t.Fatal("expected missing user to fail")
	}
}

func TestMigrateStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status: %v", err)
	}
	requireContains(t, out, "Schema version")
}

func TestWatchStopsOnCompletion(t *testing.T) {
	env := setupCLITestEnv(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := model.AnalysisStatusReady
		if calls.Add(1) > 1 {
			status = model.AnalysisStatusComplete
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"data": map[string]string{"analysisId": "a-1", "status": status},
			},
		})
	}))
	t.Cleanup(srv.Close)

	out, err := runCLI(t, env, "watch", "a-1", "--url", srv.URL, "--session", "token", "--interval", "10ms", "--timeout", "5s")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	requireContains(t, out, "Analysis a-1 is complete")
}

func TestWatchRequiresSession(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("PARALLEL_SESSION", "")

	_, err := runCLI(t, env, "watch", "a-1")
	if err == nil || !strings.Contains(err.Error(), "session token is required") {
		t.Fatalf("expected session error, got %v", err)
	}
}

func TestUsersDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	user := testsupport.NewUser(t, env.conn, "gone@example.com")
	testsupport.NewAnalysis(t, env.conn, user.ID)

	if _, err := runCLI(t, env, "users", "delete", "gone@example.com"); err == nil {
		t.Fatal("expected delete without --yes to fail")
	}

	out, err := runCLI(t, env, "users", "delete", "gone@example.com", "--yes")
	if err != nil {
		t.Fatalf("users delete: %v", err)
	}
	requireContains(t, out, "Deleted gone@example.com")

	if _, err := repository.NewUserRepository(env.conn).ByID(user.ID); err != repository.ErrUserNotFound {
		t.Fatalf("expected user to be gone, got %v", err)
	}
	analyses, err := repository.NewAnalysisRepository(env.conn).Analyses("", 10)
	if err != nil {
		t.Fatalf("list analyses: %v", err)
	}
	if len(analyses) != 0 {
		t.Fatalf("expected analysis to cascade, found %d", len(analyses))
	}
}

func TestUsersDeleteRefusesSubscribers(t *testing.T) {
	env := setupCLITestEnv(t)
	user := testsupport.NewUser(t, env.conn, "paying@example.com")
	testsupport.NewSubscription(t, env.conn, user.ID, model.SubscriptionStatusActive)

	_, err := runCLI(t, env, "users", "delete", "paying@example.com", "--yes")
	if err == nil || !strings.Contains(err.Error(), "active subscription") {
		t.Fatalf("expected active subscription error, got %v", err)
	}
}
