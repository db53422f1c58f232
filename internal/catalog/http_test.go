package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meltforce/trainlog/internal/apperr"
	"github.com/meltforce/trainlog/internal/models"
)

// TestHTTPClientGetPlanDay verifies the request shape and decoding of the plan day payload.
func TestHTTPClientGetPlanDay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/plan-days/push day" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("X-User-ID"); got != "u1" {
			t.Errorf("X-User-ID = %q, want u1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "push day", "user_id": "u1", "split_name": "Push",
			"items": [
				{"id": "i1", "exercise_id": "bench", "exercise_name": "Bench", "item_index": 0,
				 "prescription": {"sets": 3, "reps": "8-12", "rest_seconds": 120, "weight_kg": 60}},
				{"id": "i2", "exercise_id": "dips", "exercise_name": "Dips", "item_index": 1,
				 "prescription": {"sets": 2, "reps": 10, "rest_seconds": 90}}
			]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", time.Second)
	day, err := c.GetPlanDay(context.Background(), "u1", "push day")
	if err != nil {
		t.Fatalf("GetPlanDay: %v", err)
	}
	if day.SplitName != "Push" || len(day.Items) != 2 {
		t.Fatalf("day = %+v", day)
	}
	if got := day.Items[0].Prescription.Reps; got != models.RangeReps(8, 12) {
		t.Errorf("reps = %v, want 8-12", got)
	}
	if got := day.Items[1].Prescription.Reps; got != models.ScalarReps(10) {
		t.Errorf("reps = %v, want 10", got)
	}
	if w := day.Items[0].Prescription.WeightKg; w == nil || *w != 60 {
		t.Errorf("weight = %v, want 60", w)
	}
}

// TestHTTPClientErrors maps plan service failures into the error taxonomy.
func TestHTTPClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   *apperr.Error
	}{
		{"not found", http.StatusNotFound, `{"error":"not found"}`, apperr.ErrNotFound},
		{"server error", http.StatusInternalServerError, "boom", apperr.ErrInfrastructure},
		{"bad json", http.StatusOK, "{", apperr.ErrInfrastructure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPClient(srv.URL, time.Second).GetPlanDay(context.Background(), "u1", "x")
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %s", err, tt.want.Code)
			}
		})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	_, err := NewHTTPClient(url, time.Second).GetPlanDay(context.Background(), "u1", "x")
	if !apperr.IsRetryable(err) {
		t.Errorf("unreachable service: got %v, want infrastructure error", err)
	}
}
