package training

import (
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/trainlog/internal/models"
)

// SetDetail is a set with the metrics derived from it.
type SetDetail struct {
	models.SessionSet
	State      models.CompletionState `json:"state"`
	Volume     float64                `json:"volume"`
	Comparison models.Comparison      `json:"comparison"`
}

// SessionDetails is a session with per-set metrics, aggregates, and a
// per-exercise breakdown.
type SessionDetails struct {
	models.Session
	Sets       []SetDetail                `json:"sets"`
	Aggregates models.SessionAggregates   `json:"aggregates"`
	Exercises  []models.ExerciseBreakdown `json:"exercises"`
}

// NewSessionDetails derives the detail view of sess.
func NewSessionDetails(sess *models.Session) *SessionDetails {
	d := &SessionDetails{
		Session:    *sess,
		Sets:       make([]SetDetail, 0, len(sess.Sets)),
		Aggregates: models.Aggregate(sess),
		Exercises:  models.BreakdownByExercise(sess.Sets),
	}
	for _, set := range sess.Sets {
		d.Sets = append(d.Sets, SetDetail{
			SessionSet: set,
			State:      models.CompletionStateOf(set.Actual),
			Volume:     models.Volume(set.Actual),
			Comparison: models.ComparePerformance(set.Planned, set.Actual),
		})
	}
	if d.Exercises == nil {
		d.Exercises = []models.ExerciseBreakdown{}
	}
	return d
}

// SessionSummary is the per-session projection used in listings and rollups.
type SessionSummary struct {
	SessionID   uuid.UUID            `json:"session_id"`
	PlanDayName string               `json:"plan_day_name"`
	Status      models.SessionStatus `json:"status"`
	StartedAt   time.Time            `json:"started_at"`
	EndedAt     *time.Time           `json:"ended_at,omitempty"`
	SessionRPE  *int                 `json:"session_rpe,omitempty"`
	models.SessionAggregates
}

func summarizeSession(s *models.Session) SessionSummary {
	return SessionSummary{
		SessionID:         s.ID,
		PlanDayName:       s.PlanDayName,
		Status:            s.Status,
		StartedAt:         s.StartedAt,
		EndedAt:           s.EndedAt,
		SessionRPE:        s.SessionRPE,
		SessionAggregates: models.Aggregate(s),
	}
}
