package training

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/meltforce/trainlog/internal/apperr"
	"github.com/meltforce/trainlog/internal/models"
)

// Tracker records actual set performance.
type Tracker struct {
	store  SessionStore
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(store SessionStore, logger *slog.Logger) *Tracker {
	return &Tracker{store: store, logger: logger, now: time.Now}
}

// RecordSetRequest is a partial update of a set's actual performance. Nil
// fields leave the stored value untouched.
type RecordSetRequest struct {
	ActualReps         *int     `json:"actual_reps,omitempty"`
	ActualWeight       *float64 `json:"actual_weight,omitempty"`
	RPE                *int     `json:"rpe,omitempty"`
	RestSeconds        *int     `json:"rest_seconds,omitempty"`
	SetDurationSeconds *int     `json:"set_duration_seconds,omitempty"`
	Notes              *string  `json:"notes,omitempty"`
	IsSkipped          bool     `json:"is_skipped"`
}

// Validate checks ranges and required fields.
func (r RecordSetRequest) Validate() error {
	if r.RPE != nil && (*r.RPE < 1 || *r.RPE > 10) {
		return apperr.Validation("rpe must be between 1 and 10, got %d", *r.RPE)
	}
	if r.ActualReps != nil && *r.ActualReps < 0 {
		return apperr.Validation("actual_reps must not be negative")
	}
	if r.ActualWeight != nil && *r.ActualWeight < 0 {
		return apperr.Validation("actual_weight must not be negative")
	}
	if r.RestSeconds != nil && *r.RestSeconds < 0 {
		return apperr.Validation("rest_seconds must not be negative")
	}
	if r.SetDurationSeconds != nil && *r.SetDurationSeconds < 0 {
		return apperr.Validation("set_duration_seconds must not be negative")
	}
	if !r.IsSkipped && r.ActualReps == nil {
		return apperr.Validation("actual_reps is required unless the set is skipped")
	}
	return nil
}

// RecordSet merges req into the set's actual record. The parent session must
// be IN_PROGRESS. Repeated calls overwrite, including the completion time.
func (t *Tracker) RecordSet(ctx context.Context, userID string, setID uuid.UUID, req RecordSetRequest) (set *models.SessionSet, err error) {
	ctx, span := tracer.Start(ctx, "training.RecordSet",
		trace.WithAttributes(attribute.String("set.id", setID.String())))
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := t.now().UTC()
	set, err = t.store.UpdateSet(ctx, userID, setID, func(status models.SessionStatus, s *models.SessionSet) error {
		if status != models.StatusInProgress {
			return apperr.InvalidTransition("record a set for", string(status))
		}
		applyRecord(&s.Actual, req, now)
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.logger.Debug("set recorded", "user", userID, "set", setID, "skipped", req.IsSkipped)
	return set, nil
}

func applyRecord(a *models.ActualPerformance, req RecordSetRequest, now time.Time) {
	if req.ActualReps != nil {
		a.Reps = req.ActualReps
	}
	if req.ActualWeight != nil {
		a.WeightKg = req.ActualWeight
	}
	if req.RPE != nil {
		a.RPE = req.RPE
	}
	if req.RestSeconds != nil {
		a.RestSeconds = req.RestSeconds
	}
	if req.SetDurationSeconds != nil {
		a.DurationSeconds = req.SetDurationSeconds
	}
	if req.Notes != nil {
		a.Notes = req.Notes
	}
	if req.IsSkipped {
		a.IsSkipped = true
		a.CompletedAt = nil
		return
	}
	a.IsSkipped = false
	a.CompletedAt = &now
}
