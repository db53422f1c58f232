package training

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/meltforce/trainlog/internal/apperr"
	"github.com/meltforce/trainlog/internal/models"
	"github.com/meltforce/trainlog/internal/storage/sqlite"
)

func intPtr(v int) *int {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

func strPtr(v string) *string {
	return &v
}

type fakeCatalog struct {
	mu   sync.Mutex
	days map[string]*models.PlanDay
}

func (c *fakeCatalog) GetPlanDay(_ context.Context, userID, planDayID string) (*models.PlanDay, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	day, ok := c.days[planDayID]
	if !ok || day.UserID != userID {
		return nil, apperr.NotFound("plan day", planDayID)
	}
	return day, nil
}

type recordingHook struct {
	mu       sync.Mutex
	sessions []*models.Session
	err      error
	panics   bool
}

func (h *recordingHook) OnSessionCompleted(_ context.Context, sess *models.Session) error {
	if h.panics {
		panic("hook exploded")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = append(h.sessions, sess)
	return h.err
}

func (h *recordingHook) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// fixedClock returns a now func that starts at t and advances by step on every call.
func fixedClock(t time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := t
		t = t.Add(step)
		return now
	}
}

var testStart = time.Date(2026, 3, 4, 17, 0, 0, 0, time.UTC)

// pushDay has item A (3 sets of 8-12 at 60 kg) then item B (2 sets of "max").
func pushDay() *models.PlanDay {
	return &models.PlanDay{
		ID:        "push",
		UserID:    "u1",
		SplitName: "Push",
		Items: []models.PlanItem{
			{
				ID:           "item-a",
				ExerciseID:   "bench",
				ExerciseName: "Bench Press",
				ItemIndex:    0,
				Prescription: models.Prescription{
					SetCount:    3,
					Reps:        models.RangeReps(8, 12),
					RestSeconds: 120,
					WeightKg:    floatPtr(60),
				},
			},
			{
				ID:           "item-b",
				ExerciseID:   "dips",
				ExerciseName: "Dips",
				ItemIndex:    1,
				Prescription: models.Prescription{
					SetCount:    2,
					Reps:        models.TokenReps("max"),
					RestSeconds: 90,
				},
			},
		},
	}
}

type harness struct {
	store   *sqlite.Store
	catalog *fakeCatalog
	hook    *recordingHook
	manager *Manager
	tracker *Tracker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "trainlog.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		store:   store,
		catalog: &fakeCatalog{days: map[string]*models.PlanDay{"push": pushDay()}},
		hook:    &recordingHook{},
	}
	h.manager = NewManager(store, h.catalog, h.hook, logger)
	h.manager.now = fixedClock(testStart, time.Minute)
	h.tracker = NewTracker(store, logger)
	h.tracker.now = fixedClock(testStart.Add(30*time.Second), time.Minute)
	return h
}

func (h *harness) start(t *testing.T) *models.Session {
	t.Helper()
	sess, err := h.manager.StartSession(context.Background(), "u1", StartRequest{PlanDayID: "push"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return sess
}

func wantCode(t *testing.T, err error, target *apperr.Error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("got error %v, want %s", err, target.Code)
	}
}
