package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/meltforce/trainlog/internal/apperr"
	"github.com/meltforce/trainlog/internal/models"
)

const samplePlan = `
plan_days:
  - id: push
    user_id: u1
    split_name: Push
    items:
      - id: push-1
        exercise_id: bench
        exercise_name: Bench Press
        sets: 3
        reps: "8-12"
        rest_seconds: 120
        weight_kg: 60
      - id: push-2
        exercise_id: dips
        sets: 2
        reps: max
        rest_seconds: 90
      - id: push-3
        exercise_id: fly
        exercise_name: Cable Fly
        sets: 2
        reps: 15
  - id: legs
    user_id: u2
    split_name: Legs
`

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plans.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestFileCatalogGetPlanDay verifies parsing of all three reps forms and item order.
func TestFileCatalogGetPlanDay(t *testing.T) {
	c, err := LoadFile(writePlan(t, samplePlan))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	day, err := c.GetPlanDay(context.Background(), "u1", "push")
	if err != nil {
		t.Fatalf("GetPlanDay: %v", err)
	}
	w := 60.0
	want := &models.PlanDay{
		ID:        "push",
		UserID:    "u1",
		SplitName: "Push",
		Items: []models.PlanItem{
			{ID: "push-1", ExerciseID: "bench", ExerciseName: "Bench Press", ItemIndex: 0,
				Prescription: models.Prescription{SetCount: 3, Reps: models.RangeReps(8, 12), RestSeconds: 120, WeightKg: &w}},
			{ID: "push-2", ExerciseID: "dips", ExerciseName: "dips", ItemIndex: 1,
				Prescription: models.Prescription{SetCount: 2, Reps: models.TokenReps("max"), RestSeconds: 90}},
			{ID: "push-3", ExerciseID: "fly", ExerciseName: "Cable Fly", ItemIndex: 2,
				Prescription: models.Prescription{SetCount: 2, Reps: models.ScalarReps(15)}},
		},
	}
	if diff := cmp.Diff(want, day); diff != "" {
		t.Errorf("plan day mismatch (-want +got):\n%s", diff)
	}
}

// TestFileCatalogOwnership verifies missing and foreign plan days are NotFound.
func TestFileCatalogOwnership(t *testing.T) {
	c, err := LoadFile(writePlan(t, samplePlan))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	ctx := context.Background()

	if _, err := c.GetPlanDay(ctx, "u1", "legs"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("foreign plan day: got %v, want NotFound", err)
	}
	if _, err := c.GetPlanDay(ctx, "u1", "arms"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing plan day: got %v, want NotFound", err)
	}
	if _, err := c.GetPlanDay(ctx, "u2", "legs"); err != nil {
		t.Errorf("owner lookup: %v", err)
	}
}

// TestFileCatalogReturnsCopies verifies callers cannot mutate the catalog through results.
func TestFileCatalogReturnsCopies(t *testing.T) {
	c, err := LoadFile(writePlan(t, samplePlan))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	ctx := context.Background()

	first, _ := c.GetPlanDay(ctx, "u1", "push")
	*first.Items[0].Prescription.WeightKg = 200
	first.Items[0].Prescription.SetCount = 9

	second, _ := c.GetPlanDay(ctx, "u1", "push")
	if *second.Items[0].Prescription.WeightKg != 60 || second.Items[0].Prescription.SetCount != 3 {
		t.Errorf("catalog was mutated: %+v", second.Items[0].Prescription)
	}
}

// TestFileCatalogReload verifies edits are picked up and bad files keep the old contents.
func TestFileCatalogReload(t *testing.T) {
	path := writePlan(t, samplePlan)
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	edited := strings.Replace(samplePlan, `reps: "8-12"`, `reps: "5"`, 1)
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	day, _ := c.GetPlanDay(context.Background(), "u1", "push")
	if got := day.Items[0].Prescription.Reps; got != models.ScalarReps(5) {
		t.Errorf("reps after reload = %v, want 5", got)
	}

	if err := os.WriteFile(path, []byte("plan_days: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Reload(); err == nil {
		t.Fatal("expected reload of malformed file to fail")
	}
	if _, err := c.GetPlanDay(context.Background(), "u1", "push"); err != nil {
		t.Errorf("previous contents should stay in use: %v", err)
	}
}

// TestLoadFileInvalid covers the structural checks on plan files.
func TestLoadFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing id", "plan_days:\n  - user_id: u1\n", "id is required"},
		{"missing user", "plan_days:\n  - id: a\n", "user_id is required"},
		{"duplicate", "plan_days:\n  - {id: a, user_id: u1}\n  - {id: a, user_id: u1}\n", "duplicate id"},
		{"zero sets", "plan_days:\n  - id: a\n    user_id: u1\n    items:\n      - {exercise_id: x, sets: 0}\n", "sets must be at least 1"},
		{"no exercise", "plan_days:\n  - id: a\n    user_id: u1\n    items:\n      - {sets: 1}\n", "exercise_id is required"},
		{"negative rest", "plan_days:\n  - id: a\n    user_id: u1\n    items:\n      - {exercise_id: x, sets: 1, rest_seconds: -5}\n", "rest_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writePlan(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
