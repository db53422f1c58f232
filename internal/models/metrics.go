package models

import (
	"math"
	"time"
)

// CompletionState classifies a set from its actual record.
type CompletionState string

const (
	SetPending   CompletionState = "pending"
	SetCompleted CompletionState = "completed"
	SetSkipped   CompletionState = "skipped"
)

// Comparison is the outcome of comparing actual reps to the planned target.
type Comparison string

const (
	CompareUnknown   Comparison = "unknown"
	CompareAbove     Comparison = "above_plan"
	CompareBelow     Comparison = "below_plan"
	CompareAsPlanned Comparison = "as_planned"
)

// Volume returns reps × weight, or 0 when either is missing.
func Volume(a ActualPerformance) float64 {
	if a.Reps == nil || a.WeightKg == nil {
		return 0
	}
	return float64(*a.Reps) * *a.WeightKg
}

// CompletionStateOf derives pending/completed/skipped. Skipped wins over a
// stale completion timestamp.
func CompletionStateOf(a ActualPerformance) CompletionState {
	switch {
	case a.IsSkipped:
		return SetSkipped
	case a.CompletedAt != nil:
		return SetCompleted
	default:
		return SetPending
	}
}

// ComparePerformance compares actual reps with the planned target. Missing
// reps on either side, or a non-numeric planned token, yield unknown.
func ComparePerformance(planned Prescription, actual ActualPerformance) Comparison {
	if actual.Reps == nil {
		return CompareUnknown
	}
	reps := *actual.Reps

	var lo, hi int
	switch planned.Reps.Kind {
	case RepsScalar:
		lo, hi = planned.Reps.Min, planned.Reps.Min
	case RepsRange:
		lo, hi = planned.Reps.Min, planned.Reps.Max
	default:
		return CompareUnknown
	}

	switch {
	case reps > hi:
		return CompareAbove
	case reps < lo:
		return CompareBelow
	default:
		return CompareAsPlanned
	}
}

// SessionAggregates are the per-session metrics computed on read.
type SessionAggregates struct {
	TotalSets            int      `json:"total_sets"`
	CompletedSets        int      `json:"completed_sets"`
	SkippedSets          int      `json:"skipped_sets"`
	CompletionPercentage float64  `json:"completion_percentage"`
	TotalVolume          float64  `json:"total_volume"`
	DurationMinutes      *float64 `json:"duration_minutes,omitempty"`
}

// Aggregate computes SessionAggregates over the session's sets.
func Aggregate(s *Session) SessionAggregates {
	agg := SessionAggregates{TotalSets: len(s.Sets)}
	for _, set := range s.Sets {
		switch CompletionStateOf(set.Actual) {
		case SetCompleted:
			agg.CompletedSets++
		case SetSkipped:
			agg.SkippedSets++
		}
		agg.TotalVolume += Volume(set.Actual)
	}
	if agg.TotalSets > 0 {
		agg.CompletionPercentage = float64(agg.CompletedSets) / float64(agg.TotalSets) * 100
	}
	if s.EndedAt != nil {
		d := DurationMinutes(s.StartedAt, *s.EndedAt)
		agg.DurationMinutes = &d
	}
	return agg
}

// DurationMinutes returns the minutes between two instants, rounded to one decimal.
func DurationMinutes(start, end time.Time) float64 {
	return math.Round(end.Sub(start).Minutes()*10) / 10
}

// ExerciseBreakdown summarizes one exercise block of a session.
type ExerciseBreakdown struct {
	ExerciseID    string   `json:"exercise_id"`
	ExerciseName  string   `json:"exercise_name"`
	ItemIndex     int      `json:"item_index"`
	Sets          int      `json:"sets"`
	CompletedSets int      `json:"completed_sets"`
	Volume        float64  `json:"volume"`
	BestWeightKg  *float64 `json:"best_weight_kg,omitempty"`
}

// BreakdownByExercise groups sets by plan item, keeping plan order.
func BreakdownByExercise(sets []SessionSet) []ExerciseBreakdown {
	var out []ExerciseBreakdown
	index := make(map[int]int)
	for _, set := range sets {
		i, ok := index[set.ItemIndex]
		if !ok {
			out = append(out, ExerciseBreakdown{
				ExerciseID:   set.ExerciseID,
				ExerciseName: set.ExerciseName,
				ItemIndex:    set.ItemIndex,
			})
			i = len(out) - 1
			index[set.ItemIndex] = i
		}
		b := &out[i]
		b.Sets++
		if CompletionStateOf(set.Actual) == SetCompleted {
			b.CompletedSets++
			if w := set.Actual.WeightKg; w != nil && (b.BestWeightKg == nil || *w > *b.BestWeightKg) {
				best := *w
				b.BestWeightKg = &best
			}
		}
		b.Volume += Volume(set.Actual)
	}
	return out
}
