package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a workout session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusPaused     SessionStatus = "PAUSED"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusCancelled  SessionStatus = "CANCELLED"
)

// ActiveStatuses are the states covered by the one-active-session-per-user rule.
var ActiveStatuses = []SessionStatus{StatusInProgress, StatusPaused}

// IsActive reports whether the session still blocks a new start.
func (s SessionStatus) IsActive() bool {
	return s == StatusInProgress || s == StatusPaused
}

// IsTerminal reports whether no further transition is possible.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is one of the four known states.
func (s SessionStatus) Valid() bool {
	return s.IsActive() || s.IsTerminal()
}

// Session is one workout attempt by a user.
type Session struct {
	ID          uuid.UUID          `json:"id"`
	UserID      string             `json:"user_id"`
	PlanDayID   *string            `json:"plan_day_id,omitempty"`
	PlanDayName string             `json:"plan_day_name,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	EndedAt     *time.Time         `json:"ended_at,omitempty"`
	Status      SessionStatus      `json:"status"`
	SessionRPE  *int               `json:"session_rpe,omitempty"`
	Notes       string             `json:"notes"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	DeletedAt   *time.Time         `json:"-"`
	Sets        []SessionSet       `json:"sets"`
}

// AppendNotes adds text on a new line, leaving existing notes intact.
func (s *Session) AppendNotes(text string) {
	if text == "" {
		return
	}
	if s.Notes == "" {
		s.Notes = text
		return
	}
	s.Notes += "\n" + text
}

// SessionSet is one planned/performed set of one exercise within a Session.
type SessionSet struct {
	ID           uuid.UUID         `json:"id"`
	SessionID    uuid.UUID         `json:"session_id"`
	ExerciseID   string            `json:"exercise_id"`
	ExerciseName string            `json:"exercise_name"`
	PlanItemID   *string           `json:"plan_item_id,omitempty"`
	ItemIndex    int               `json:"item_index"`
	SetIndex     int               `json:"set_index"`
	Planned      Prescription      `json:"planned"`
	Actual       ActualPerformance `json:"actual"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Prescription is the planned parameters for a plan item.
type Prescription struct {
	SetCount    int        `json:"sets"`
	Reps        RepsTarget `json:"reps"`
	RestSeconds int        `json:"rest_seconds"`
	WeightKg    *float64   `json:"weight_kg,omitempty"`
}

// Clone returns a deep copy so later edits to the source cannot leak into a snapshot.
func (p Prescription) Clone() Prescription {
	out := p
	if p.WeightKg != nil {
		w := *p.WeightKg
		out.WeightKg = &w
	}
	return out
}

// ActualPerformance is what the user recorded for a set. Nil means "not recorded".
type ActualPerformance struct {
	Reps            *int       `json:"reps,omitempty"`
	WeightKg        *float64   `json:"weight_kg,omitempty"`
	RPE             *int       `json:"rpe,omitempty"`
	RestSeconds     *int       `json:"rest_seconds,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	IsSkipped       bool       `json:"is_skipped"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// PlanDay is a scheduled day from the plan catalog, as read at session start.
type PlanDay struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	SplitName string     `json:"split_name"`
	Items     []PlanItem `json:"items"`
}

// PlanItem is one exercise slot of a plan day.
type PlanItem struct {
	ID           string       `json:"id"`
	ExerciseID   string       `json:"exercise_id"`
	ExerciseName string       `json:"exercise_name"`
	ItemIndex    int          `json:"item_index"`
	Prescription Prescription `json:"prescription"`
}
