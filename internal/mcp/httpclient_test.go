package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/trainlog/internal/apperr"
	"github.com/meltforce/trainlog/internal/models"
	"github.com/meltforce/trainlog/internal/training"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestGetActiveSessionSendsCredentials verifies the configured key and user travel as headers.
func TestGetActiveSessionSendsCredentials(t *testing.T) {
	id := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sessions/active": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("X-API-Key"); got != "key" {
				t.Errorf("X-API-Key = %q, want key", got)
			}
			if got := r.Header.Get("X-User-ID"); got != "u1" {
				t.Errorf("X-User-ID = %q, want u1", got)
			}
			writeTestJSON(t, w, training.NewSessionDetails(&models.Session{
				ID:          id,
				UserID:      "u1",
				PlanDayName: "Push",
				Status:      models.StatusInProgress,
			}))
		},
	})
	defer ts.Close()

	details, err := NewHTTPClient(ts.URL+"/", "key", "u1").GetActiveSession(context.Background(), "ignored")
	if err != nil {
		t.Fatal(err)
	}
	if details.ID != id || details.Status != models.StatusInProgress {
		t.Errorf("details = %s %s, want %s IN_PROGRESS", details.ID, details.Status, id)
	}
}

// TestErrorCodesSurvive verifies that API error bodies come back as domain errors.
func TestErrorCodesSurvive(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sessions/active": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			writeTestJSON(t, w, map[string]string{"error": `active session "u1" not found`, "code": "NOT_FOUND"})
		},
		"/api/v1/summary/monthly": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		},
	})
	defer ts.Close()
	client := NewHTTPClient(ts.URL, "", "")

	_, err := client.GetActiveSession(context.Background(), "")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetActiveSession error = %v, want NOT_FOUND", err)
	}

	_, err = client.GetMonthlySummary(context.Background(), "", "2026-03")
	if err == nil || apperr.CodeOf(err) != apperr.CodeUnknown {
		t.Errorf("GetMonthlySummary error = %v, want plain error", err)
	}
}

// TestUnreachableServerIsRetryable verifies that transport failures are infrastructure errors.
func TestUnreachableServerIsRetryable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewHTTPClient(url, "", "").GetWeeklySummary(context.Background(), "", "")
	if !apperr.IsRetryable(err) {
		t.Errorf("error = %v, want retryable", err)
	}
}

// TestListSessionsParams verifies the time range is sent as RFC 3339 from/to parameters.
func TestListSessionsParams(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sessions": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("from"); got != "2026-03-01T00:00:00Z" {
				t.Errorf("from = %q", got)
			}
			if got := r.URL.Query().Get("to"); got != "2026-03-08T00:00:00Z" {
				t.Errorf("to = %q", got)
			}
			writeTestJSON(t, w, []training.SessionSummary{{PlanDayName: "Push", Status: models.StatusCompleted}})
		},
	})
	defer ts.Close()

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sessions, err := NewHTTPClient(ts.URL, "", "").ListSessions(context.Background(), "", from, from.AddDate(0, 0, 7))
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].PlanDayName != "Push" {
		t.Errorf("sessions = %+v", sessions)
	}
}

// TestSummaryParams verifies that week and month selectors are forwarded only when set.
func TestSummaryParams(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/summary/weekly": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("date"); got != "2026-03-04" {
				t.Errorf("date = %q, want 2026-03-04", got)
			}
			writeTestJSON(t, w, training.WeeklySummary{Totals: training.Totals{TotalSessions: 3}})
		},
		"/api/v1/summary/monthly": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Has("month") {
				t.Errorf("month should be omitted, got %q", r.URL.RawQuery)
			}
			writeTestJSON(t, w, training.MonthlySummary{Year: 2026, Month: 3})
		},
	})
	defer ts.Close()
	client := NewHTTPClient(ts.URL, "", "")

	weekly, err := client.GetWeeklySummary(context.Background(), "", "2026-03-04")
	if err != nil {
		t.Fatal(err)
	}
	if weekly.TotalSessions != 3 {
		t.Errorf("total_sessions = %d, want 3", weekly.TotalSessions)
	}

	monthly, err := client.GetMonthlySummary(context.Background(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if monthly.Month != 3 {
		t.Errorf("month = %d, want 3", monthly.Month)
	}
}
