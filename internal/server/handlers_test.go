package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meltforce/trainlog/internal/catalog"
	"github.com/meltforce/trainlog/internal/hooks"
	"github.com/meltforce/trainlog/internal/models"
	"github.com/meltforce/trainlog/internal/storage/sqlite"
	"github.com/meltforce/trainlog/internal/training"
)

const testAPIKey = "test-key"

const testPlan = `
plan_days:
  - id: push
    user_id: u1
    split_name: Push
    items:
      - id: push-1
        exercise_id: bench
        exercise_name: Bench Press
        sets: 2
        reps: "8-12"
        rest_seconds: 120
        weight_kg: 60
      - id: push-2
        exercise_id: dips
        exercise_name: Dips
        sets: 1
        reps: max
        rest_seconds: 90
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	store, err := sqlite.Open(filepath.Join(dir, "trainlog.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	planPath := filepath.Join(dir, "plans.yaml")
	if err := os.WriteFile(planPath, []byte(testPlan), 0o644); err != nil {
		t.Fatal(err)
	}
	plans, err := catalog.LoadFile(planPath)
	if err != nil {
		t.Fatalf("loading plans: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := training.NewManager(store, plans, hooks.LogHook{Logger: log}, log)
	t.Cleanup(manager.Wait)

	return New(manager, training.NewTracker(store, log), training.NewAggregator(store, time.UTC), log,
		APIKeyAuth(testAPIKey), HeaderIdentity)
}

// do sends a request as the given user and decodes the JSON response into out when non-nil.
func do(t *testing.T, s *Server, user, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", testAPIKey)
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decoding response: %v", method, path, err)
		}
	}
	return rec.Code
}

// TestHandleMe verifies the /api/v1/me endpoint returns the caller identity.
func TestHandleMe(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req = req.WithContext(WithUser(req.Context(), UserInfo{ID: "alice@example.com", Login: "alice@example.com", DisplayName: "Alice"}))
	rec := httptest.NewRecorder()

	s.handleMe(rec, req)

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "alice@example.com" {
		t.Errorf("login = %q, want %q", info.Login, "alice@example.com")
	}
	if info.DisplayName != "Alice" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Alice")
	}
}

// TestSessionWorkflow drives a session from start to completion over HTTP.
func TestSessionWorkflow(t *testing.T) {
	s := newTestServer(t)

	var started models.Session
	if code := do(t, s, "u1", http.MethodPost, "/api/v1/sessions", training.StartRequest{PlanDayID: "push"}, &started); code != http.StatusCreated {
		t.Fatalf("start status = %d, want 201", code)
	}
	if started.Status != models.StatusInProgress || len(started.Sets) != 3 {
		t.Fatalf("started = %s with %d sets, want IN_PROGRESS with 3", started.Status, len(started.Sets))
	}

	var active training.SessionDetails
	if code := do(t, s, "u1", http.MethodGet, "/api/v1/sessions/active", nil, &active); code != http.StatusOK {
		t.Fatalf("active status = %d, want 200", code)
	}
	if active.ID != started.ID {
		t.Errorf("active id = %s, want %s", active.ID, started.ID)
	}

	setPath := "/api/v1/sets/" + started.Sets[0].ID.String()
	reps, weight := 10, 60.0
	var set models.SessionSet
	code := do(t, s, "u1", http.MethodPatch, setPath, training.RecordSetRequest{ActualReps: &reps, ActualWeight: &weight}, &set)
	if code != http.StatusOK {
		t.Fatalf("record set status = %d, want 200", code)
	}
	if set.Actual.Reps == nil || *set.Actual.Reps != 10 || set.Actual.CompletedAt == nil {
		t.Errorf("recorded set actual = %+v", set.Actual)
	}

	sessPath := "/api/v1/sessions/" + started.ID.String()
	if code := do(t, s, "u1", http.MethodPost, sessPath+"/pause", map[string]string{"reason": "phone call"}, nil); code != http.StatusOK {
		t.Fatalf("pause status = %d, want 200", code)
	}
	if code := do(t, s, "u1", http.MethodPatch, setPath, training.RecordSetRequest{ActualReps: &reps}, nil); code != http.StatusConflict {
		t.Errorf("record on paused session status = %d, want 409", code)
	}
	if code := do(t, s, "u1", http.MethodPost, sessPath+"/complete", nil, nil); code != http.StatusConflict {
		t.Errorf("complete from paused status = %d, want 409", code)
	}
	if code := do(t, s, "u1", http.MethodPost, sessPath+"/resume", nil, nil); code != http.StatusOK {
		t.Fatalf("resume status = %d, want 200", code)
	}

	rpe := 8
	var done training.SessionDetails
	if code := do(t, s, "u1", http.MethodPost, sessPath+"/complete", training.CompleteRequest{SessionRPE: &rpe}, &done); code != http.StatusOK {
		t.Fatalf("complete status = %d, want 200", code)
	}
	if done.Status != models.StatusCompleted || done.Aggregates.TotalVolume != 600 {
		t.Errorf("completed = %s volume %.1f, want COMPLETED 600", done.Status, done.Aggregates.TotalVolume)
	}
	if done.Aggregates.CompletedSets != 1 || done.Aggregates.TotalSets != 3 {
		t.Errorf("sets = %d/%d, want 1/3", done.Aggregates.CompletedSets, done.Aggregates.TotalSets)
	}

	if code := do(t, s, "u1", http.MethodGet, "/api/v1/sessions/active", nil, nil); code != http.StatusNotFound {
		t.Errorf("active after completion status = %d, want 404", code)
	}

	var weekly training.WeeklySummary
	if code := do(t, s, "u1", http.MethodGet, "/api/v1/summary/weekly", nil, &weekly); code != http.StatusOK {
		t.Fatalf("weekly status = %d, want 200", code)
	}
	if weekly.TotalSessions != 1 || weekly.CompletedSessions != 1 || weekly.TotalVolume != 600 {
		t.Errorf("weekly = %+v", weekly.Totals)
	}

	var list []training.SessionSummary
	if code := do(t, s, "u1", http.MethodGet, "/api/v1/sessions", nil, &list); code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", code)
	}
	if len(list) != 1 || list[0].SessionID != started.ID {
		t.Errorf("list = %+v", list)
	}

	if code := do(t, s, "u1", http.MethodDelete, sessPath, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", code)
	}
	if code := do(t, s, "u1", http.MethodGet, sessPath, nil, nil); code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", code)
	}
}

// TestErrorStatuses verifies the HTTP status each failure class maps to.
func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)

	var started models.Session
	if code := do(t, s, "u1", http.MethodPost, "/api/v1/sessions", training.StartRequest{PlanDayID: "push"}, &started); code != http.StatusCreated {
		t.Fatalf("start status = %d, want 201", code)
	}
	sessPath := "/api/v1/sessions/" + started.ID.String()

	tests := []struct {
		name   string
		user   string
		method string
		path   string
		body   any
		want   int
	}{
		{"second active session", "u1", http.MethodPost, "/api/v1/sessions", training.StartRequest{PlanDayID: "push"}, http.StatusConflict},
		{"unknown plan day", "u2", http.MethodPost, "/api/v1/sessions", training.StartRequest{PlanDayID: "legs"}, http.StatusNotFound},
		{"foreign plan day", "u2", http.MethodPost, "/api/v1/sessions", training.StartRequest{PlanDayID: "push"}, http.StatusNotFound},
		{"missing plan day", "u2", http.MethodPost, "/api/v1/sessions", training.StartRequest{}, http.StatusBadRequest},
		{"foreign session", "u2", http.MethodGet, sessPath, nil, http.StatusNotFound},
		{"foreign pause", "u2", http.MethodPost, sessPath + "/pause", nil, http.StatusNotFound},
		{"resume in progress", "u1", http.MethodPost, sessPath + "/resume", nil, http.StatusConflict},
		{"delete in progress", "u1", http.MethodDelete, sessPath, nil, http.StatusConflict},
		{"bad session id", "u1", http.MethodGet, "/api/v1/sessions/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown set", "u1", http.MethodPatch, "/api/v1/sets/00000000-0000-0000-0000-000000000001", map[string]int{"actual_reps": 5}, http.StatusNotFound},
		{"invalid rpe", "u1", http.MethodPost, sessPath + "/complete", map[string]int{"session_rpe": 11}, http.StatusBadRequest},
		{"unknown field", "u1", http.MethodPost, sessPath + "/complete", map[string]int{"rating": 3}, http.StatusBadRequest},
		{"bad month", "u1", http.MethodGet, "/api/v1/summary/monthly?month=2026-13", nil, http.StatusBadRequest},
		{"bad date", "u1", http.MethodGet, "/api/v1/summary/weekly?date=yesterday", nil, http.StatusBadRequest},
		{"no user", "", http.MethodGet, "/api/v1/sessions/active", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := do(t, s, tt.user, tt.method, tt.path, tt.body, nil); code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}
}

// TestErrorBody verifies that domain errors carry their code in the response body.
func TestErrorBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/active", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set(UserIDHeader, "u1")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if rec.Code != http.StatusNotFound || body.Code != "NOT_FOUND" {
		t.Errorf("status = %d code = %q, want 404 NOT_FOUND", rec.Code, body.Code)
	}
}

// TestMonthlySummaryEmpty verifies that a month without sessions returns zero totals.
func TestMonthlySummaryEmpty(t *testing.T) {
	s := newTestServer(t)
	var monthly training.MonthlySummary
	if code := do(t, s, "u1", http.MethodGet, "/api/v1/summary/monthly?month=2026-02", nil, &monthly); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if monthly.Year != 2026 || monthly.Month != 2 || monthly.TotalSessions != 0 {
		t.Errorf("monthly = %d-%d with %d sessions", monthly.Year, monthly.Month, monthly.TotalSessions)
	}
	if len(monthly.Weeks) != 5 {
		t.Errorf("weeks = %d, want 5", len(monthly.Weeks))
	}
}

// TestAPIRequiresKey verifies that the API key check runs before identity.
func TestAPIRequiresKey(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/active", nil)
	req.Header.Set(UserIDHeader, "u1")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// TestParseTimeRange verifies from/to parsing, the date-only end-of-day rule, and the default window.
func TestParseTimeRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2026-03-01&to=2026-03-07", nil)
	from, to, err := parseTimeRange(req, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !from.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v", from)
	}
	if !to.Equal(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("to = %v, want end of 2026-03-07", to)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	from, to, err = parseTimeRange(req, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := to.Sub(from); d < 29*24*time.Hour || d > 31*24*time.Hour {
		t.Errorf("default range = %v, want ~30 days", d)
	}

	req = httptest.NewRequest(http.MethodGet, "/?from=soon", nil)
	if _, _, err := parseTimeRange(req, time.UTC); err == nil {
		t.Error("expected error for invalid from")
	}
}

// TestHealthz verifies the unauthenticated liveness endpoint.
func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// TestSetMCP verifies that the MCP mount sits behind the API auth and sees the caller.
func TestSetMCP(t *testing.T) {
	s := newTestServer(t)
	var got string
	s.SetMCP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set(UserIDHeader, "u1")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req.WithContext(context.Background()))
	if rec.Code != http.StatusAccepted || got != "u1" {
		t.Errorf("status = %d user = %q, want 202 u1", rec.Code, got)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}
}
