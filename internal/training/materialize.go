package training

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/trainlog/internal/models"
)

// Materialize expands plan items into one SessionSet per planned set, in
// plan order then set order. Item indexes are renumbered from zero in that
// order and set indexes run from 1 within each item.
//
// Each set gets its own copy of the prescription. The actual record is
// pre-filled with the planned rest and weight so the user only has to
// confirm reps.
func Materialize(sessionID uuid.UUID, items []models.PlanItem, now time.Time) []models.SessionSet {
	ordered := slices.Clone(items)
	slices.SortStableFunc(ordered, func(a, b models.PlanItem) int {
		return cmp.Compare(a.ItemIndex, b.ItemIndex)
	})

	var sets []models.SessionSet
	for itemIndex, item := range ordered {
		for setIndex := 1; setIndex <= item.Prescription.SetCount; setIndex++ {
			planned := item.Prescription.Clone()
			rest := planned.RestSeconds
			actual := models.ActualPerformance{RestSeconds: &rest}
			if planned.WeightKg != nil {
				w := *planned.WeightKg
				actual.WeightKg = &w
			}

			var planItemID *string
			if item.ID != "" {
				id := item.ID
				planItemID = &id
			}

			sets = append(sets, models.SessionSet{
				ID:           uuid.New(),
				SessionID:    sessionID,
				ExerciseID:   item.ExerciseID,
				ExerciseName: item.ExerciseName,
				PlanItemID:   planItemID,
				ItemIndex:    itemIndex,
				SetIndex:     setIndex,
				Planned:      planned,
				Actual:       actual,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
	}
	return sets
}
