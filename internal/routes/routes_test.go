package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/parallelhq/parallel/internal/app"
	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/testsupport"
)

const testPassword = "correct-horse-battery"

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	conn   *sqlx.DB
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	conn := testsupport.MustOpenDB(t)
	a, err := app.Wire(testsupport.Config(), conn, testsupport.NewMemStorage())
	if err != nil {
		t.Fatalf("app.Wire: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	srv := httptest.NewServer(SetupRoutes(a))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testServer{t: t, srv: srv, conn: conn, client: client}
}

func (s *testServer) cookie(name string) string {
	u, _ := url.Parse(s.srv.URL)
	for _, c := range s.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (s *testServer) do(method, path, body string, csrf bool) (*http.Response, []byte) {
	s.t.Helper()

	if csrf && s.cookie("csrf_token") == "" {
		s.do(http.MethodGet, "/healthz", "", false)
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	if err != nil {
		s.t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if csrf {
		req.Header.Set("X-CSRF-Token", s.cookie("csrf_token"))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		s.t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (s *testServer) signUp(email string) {
	s.t.Helper()
	resp, body := s.do(http.MethodPost, "/api/auth/sign-up",
		`{"name":"Test","email":"`+email+`","password":"`+testPassword+`"}`, true)
	if resp.StatusCode != http.StatusCreated {
		s.t.Fatalf("sign up: expected 201, got %d: %s", resp.StatusCode, body)
	}
}

func (s *testServer) query(procedure string, input any) (int, map[string]any) {
	s.t.Helper()
	raw, _ := json.Marshal(input)
	resp, body := s.do(http.MethodGet, "/api/rpc/"+procedure+"?input="+url.QueryEscape(string(raw)), "", false)
	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		s.t.Fatalf("decode %s response %q: %v", procedure, body, err)
	}
	return resp.StatusCode, envelope
}

func errorCode(envelope map[string]any) string {
	e, _ := envelope["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthzIssuesCSRFCookie(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(http.MethodGet, "/healthz", "", false)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("healthz: %d %s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
	if s.cookie("csrf_token") == "" {
		t.Fatal("expected csrf cookie")
	}
}

func TestStateChangingRequestsRequireCSRF(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(http.MethodPost, "/api/auth/sign-up", `{"name":"A","email":"a@example.com","password":"`+testPassword+`"}`, false)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf, got %d", resp.StatusCode)
	}

	// Webhooks are signed by the provider instead
	resp, _ = s.do(http.MethodPost, "/webhooks/stripe", `{}`, false)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected webhook to reach the handler, got %d", resp.StatusCode)
	}
}

func TestSignUpSessionAndSignOut(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(http.MethodGet, "/api/auth/session", "", false)
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "null" {
		t.Fatalf("anonymous session: %d %s", resp.StatusCode, body)
	}

	s.signUp("new@example.com")

	resp, body = s.do(http.MethodPost, "/api/auth/sign-up",
		`{"name":"Again","email":"new@example.com","password":"`+testPassword+`"}`, true)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate sign up: expected 409, got %d: %s", resp.StatusCode, body)
	}

	resp, body = s.do(http.MethodGet, "/api/auth/session", "", false)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "new@example.com") {
		t.Fatalf("session: %d %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), s.cookie("csrf_token")) {
		t.Fatalf("expected session to echo the csrf token: %s", body)
	}

	resp, _ = s.do(http.MethodPost, "/api/auth/sign-out", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign out: %d", resp.StatusCode)
	}

	resp, body = s.do(http.MethodPost, "/api/auth/sign-in",
		`{"email":"new@example.com","password":"wrong-password-1"}`, true)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad sign in: expected 401, got %d: %s", resp.StatusCode, body)
	}

	resp, body = s.do(http.MethodPost, "/api/auth/sign-in",
		`{"email":"new@example.com","password":"`+testPassword+`"}`, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign in: %d %s", resp.StatusCode, body)
	}
}

func TestJourneyFollowsProgress(t *testing.T) {
	s := newTestServer(t)

	status, envelope := s.query("journey.destination", map[string]string{"currentPath": "/"})
	if status != http.StatusOK {
		t.Fatalf("journey: %d %v", status, envelope)
	}
	data := envelope["result"].(map[string]any)["data"].(map[string]any)
	if data["destination"] != "/auth" {
		t.Fatalf("anonymous destination: %v", data["destination"])
	}

	s.signUp("journey@example.com")

	resp, _ := s.do(http.MethodGet, "/api/redirect?path=/", "", false)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/onboarding" {
		t.Fatalf("redirect: %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestProcedureTiers(t *testing.T) {
	s := newTestServer(t)

	status, envelope := s.query("analysis.getFirstAnalysis", struct{}{})
	if status != http.StatusUnauthorized || errorCode(envelope) != "UNAUTHORIZED" {
		t.Fatalf("anonymous: %d %v", status, envelope)
	}

	s.signUp("tiers@example.com")

	status, envelope = s.query("subscription.isSubscribed", struct{}{})
	if status != http.StatusOK {
		t.Fatalf("isSubscribed: %d %v", status, envelope)
	}
	if envelope["result"].(map[string]any)["data"] != false {
		t.Fatalf("expected not subscribed: %v", envelope)
	}

	resp, body := s.do(http.MethodPost, "/api/rpc/analysis.create", `{}`, true)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unsubscribed create: expected 403, got %d: %s", resp.StatusCode, body)
	}

	status, envelope = s.query("review.listAnalyses", struct{}{})
	if status != http.StatusForbidden || errorCode(envelope) != "FORBIDDEN" {
		t.Fatalf("non-reviewer: %d %v", status, envelope)
	}
}

func TestForeignAnalysisIsNotFound(t *testing.T) {
	s := newTestServer(t)

	other := testsupport.NewUser(t, s.conn, "other@example.com")
	foreign := testsupport.NewAnalysis(t, s.conn, other.ID)

	s.signUp("curious@example.com")

	status, envelope := s.query("analysis.checkAnalysisCompletion", map[string]string{"analysisId": foreign.ID})
	if status != http.StatusNotFound || errorCode(envelope) != "NOT_FOUND" {
		t.Fatalf("foreign analysis: %d %v", status, envelope)
	}

	status, envelope = s.query("analysis.checkAnalysisCompletion", map[string]string{"analysisId": "not-a-uuid"})
	if status != http.StatusBadRequest || errorCode(envelope) != "BAD_REQUEST" {
		t.Fatalf("bad id: %d %v", status, envelope)
	}
}

func TestReviewerSeesQueue(t *testing.T) {
	s := newTestServer(t)

	owner := testsupport.NewUser(t, s.conn, "owner@example.com")
	analysis := testsupport.NewAnalysis(t, s.conn, owner.ID)

	// reviewer@example.com is on the configured reviewer list
	s.signUp("reviewer@example.com")

	status, envelope := s.query("review.listAnalyses", map[string]string{"status": model.AnalysisStatusInProgress})
	if status != http.StatusOK {
		t.Fatalf("listAnalyses: %d %v", status, envelope)
	}
	raw, _ := json.Marshal(envelope["result"])
	if !strings.Contains(string(raw), analysis.ID) {
		t.Fatalf("expected %s in queue: %s", analysis.ID, raw)
	}

	resp, body := s.do(http.MethodPost, "/api/rpc/review.advanceStatus",
		`{"analysisId":"`+analysis.ID+`","status":"ready"}`, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("advance: %d %s", resp.StatusCode, body)
	}

	resp, body = s.do(http.MethodPost, "/api/rpc/review.advanceStatus",
		`{"analysisId":"`+analysis.ID+`","status":"in_progress"}`, true)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("regression: expected 409, got %d: %s", resp.StatusCode, body)
	}
}

func TestUploadsAreGated(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(http.MethodPost, "/api/uploads/submission-photo", "", true)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous upload: expected 401, got %d", resp.StatusCode)
	}

	s.signUp("uploader@example.com")

	resp, _ = s.do(http.MethodPost, "/api/uploads/analysis-photo", "", true)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unsubscribed analysis upload: expected 403, got %d", resp.StatusCode)
	}
}

func TestBillingWithoutProvider(t *testing.T) {
	s := newTestServer(t)
	s.signUp("billing@example.com")

	resp, _ := s.do(http.MethodPost, "/api/billing/checkout", "", true)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("checkout: expected 503, got %d", resp.StatusCode)
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(http.MethodGet, "/nope", "", false)
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(body), `"error"`) {
		t.Fatalf("fallback: %d %s", resp.StatusCode, body)
	}

	status, envelope := s.query("does.notExist", struct{}{})
	if status != http.StatusNotFound || errorCode(envelope) != "NOT_FOUND" {
		t.Fatalf("unknown procedure: %d %v", status, envelope)
	}
}
