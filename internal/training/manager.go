package training

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/meltforce/trainlog/internal/apperr"
	"github.com/meltforce/trainlog/internal/models"
)

var tracer = otel.Tracer("github.com/meltforce/trainlog/internal/training")

// DefaultHookTimeout bounds a single completion hook call.
const DefaultHookTimeout = 10 * time.Second

// Manager owns the session state machine.
type Manager struct {
	store       SessionStore
	catalog     PlanCatalog
	hook        CompletionHook
	logger      *slog.Logger
	hookTimeout time.Duration
	now         func() time.Time
	hooks       sync.WaitGroup
}

// NewManager creates a Manager. hook may be nil.
func NewManager(store SessionStore, catalog PlanCatalog, hook CompletionHook, logger *slog.Logger) *Manager {
	return &Manager{
		store:       store,
		catalog:     catalog,
		hook:        hook,
		logger:      logger,
		hookTimeout: DefaultHookTimeout,
		now:         time.Now,
	}
}

// SetHookTimeout overrides DefaultHookTimeout. Non-positive values are ignored.
func (m *Manager) SetHookTimeout(d time.Duration) {
	if d > 0 {
		m.hookTimeout = d
	}
}

// StartRequest holds the parameters of StartSession.
type StartRequest struct {
	PlanDayID string     `json:"plan_day_id"`
	Notes     string     `json:"notes,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
}

// CompleteRequest holds the parameters of CompleteSession. All fields are optional.
type CompleteRequest struct {
	EndTime        *time.Time         `json:"end_time,omitempty"`
	SessionRPE     *int               `json:"session_rpe,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	WorkoutFeeling string             `json:"workout_feeling,omitempty"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
}

// StartSession creates an IN_PROGRESS session from a plan day and materializes its sets.
func (m *Manager) StartSession(ctx context.Context, userID string, req StartRequest) (sess *models.Session, err error) {
	ctx, span := tracer.Start(ctx, "training.StartSession",
		trace.WithAttributes(attribute.String("plan_day.id", req.PlanDayID)))
	defer func() { endSpan(span, err) }()

	planDayID := strings.TrimSpace(req.PlanDayID)
	if planDayID == "" {
		return nil, apperr.Validation("plan_day_id is required")
	}

	day, err := m.catalog.GetPlanDay(ctx, userID, planDayID)
	if err != nil {
		return nil, fmt.Errorf("resolving plan day: %w", err)
	}
	if day.UserID != "" && day.UserID != userID {
		return nil, apperr.NotFound("plan day", planDayID)
	}

	now := m.now().UTC()
	startedAt := now
	if req.StartTime != nil {
		startedAt = req.StartTime.UTC()
	}

	sess = &models.Session{
		ID:          uuid.New(),
		UserID:      userID,
		PlanDayID:   &planDayID,
		PlanDayName: day.SplitName,
		StartedAt:   startedAt,
		Status:      models.StatusInProgress,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	sess.Sets = Materialize(sess.ID, day.Items, now)

	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("session.id", sess.ID.String()))
	m.logger.Info("session started", "user", userID, "session", sess.ID, "plan_day", planDayID, "sets", len(sess.Sets))
	return sess, nil
}

// PauseSession moves an IN_PROGRESS session to PAUSED, appending reason to the notes.
func (m *Manager) PauseSession(ctx context.Context, userID string, id uuid.UUID, reason string) (*models.Session, error) {
	return m.transition(ctx, userID, id, models.OpPause, func(s *models.Session, _ time.Time) error {
		if r := strings.TrimSpace(reason); r != "" {
			s.AppendNotes("Paused: " + r)
		}
		return nil
	})
}

// ResumeSession moves a PAUSED session back to IN_PROGRESS.
func (m *Manager) ResumeSession(ctx context.Context, userID string, id uuid.UUID) (*models.Session, error) {
	return m.transition(ctx, userID, id, models.OpResume, nil)
}

// CancelSession ends an active session as CANCELLED.
func (m *Manager) CancelSession(ctx context.Context, userID string, id uuid.UUID, reason string) (*models.Session, error) {
	return m.transition(ctx, userID, id, models.OpCancel, func(s *models.Session, now time.Time) error {
		s.EndedAt = &now
		if r := strings.TrimSpace(reason); r != "" {
			s.AppendNotes("Cancelled: " + r)
		}
		return nil
	})
}

// CompleteSession ends an IN_PROGRESS session as COMPLETED and notifies the
// completion hook in the background. A PAUSED session must be resumed first.
func (m *Manager) CompleteSession(ctx context.Context, userID string, id uuid.UUID, req CompleteRequest) (*models.Session, error) {
	if req.SessionRPE != nil && (*req.SessionRPE < 1 || *req.SessionRPE > 10) {
		return nil, apperr.Validation("session_rpe must be between 1 and 10, got %d", *req.SessionRPE)
	}

	sess, err := m.transition(ctx, userID, id, models.OpComplete, func(s *models.Session, now time.Time) error {
		end := now
		if req.EndTime != nil {
			end = req.EndTime.UTC()
		}
		if end.Before(s.StartedAt) {
			return apperr.Validation("end_time %s is before the session start %s",
				end.Format(time.RFC3339), s.StartedAt.Format(time.RFC3339))
		}
		s.EndedAt = &end
		s.SessionRPE = req.SessionRPE
		s.AppendNotes(strings.TrimSpace(req.Notes))
		if f := strings.TrimSpace(req.WorkoutFeeling); f != "" {
			s.AppendNotes("Feeling: " + f)
		}
		if len(req.Metrics) > 0 {
			if s.Metrics == nil {
				s.Metrics = make(map[string]float64, len(req.Metrics))
			}
			for k, v := range req.Metrics {
				s.Metrics[k] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.fireCompletionHook(ctx, sess)
	return sess, nil
}

// DeleteSession soft-deletes a COMPLETED or CANCELLED session. Active sessions
// must be cancelled first.
func (m *Manager) DeleteSession(ctx context.Context, userID string, id uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "training.DeleteSession",
		trace.WithAttributes(attribute.String("session.id", id.String())))
	defer func() { endSpan(span, err) }()

	now := m.now().UTC()
	_, err = m.store.UpdateSession(ctx, userID, id, func(s *models.Session) error {
		if !s.Status.IsTerminal() {
			return apperr.InvalidTransition("delete", string(s.Status))
		}
		s.DeletedAt = &now
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Info("session deleted", "user", userID, "session", id)
	return nil
}

// GetActiveSession returns the user's IN_PROGRESS or PAUSED session with its sets.
func (m *Manager) GetActiveSession(ctx context.Context, userID string) (*models.Session, error) {
	sess, err := m.store.GetActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.NotFound("active session", userID)
	}
	return sess, nil
}

// GetSessionDetails returns the session with per-set metrics and session aggregates.
func (m *Manager) GetSessionDetails(ctx context.Context, userID string, id uuid.UUID) (*SessionDetails, error) {
	sess, err := m.store.GetSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return NewSessionDetails(sess), nil
}

// ListSessions returns one summary per session that started in [from, to), oldest first.
func (m *Manager) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]SessionSummary, error) {
	out := []SessionSummary{}
	if !from.Before(to) {
		return out, nil
	}
	sessions, err := m.store.ListSessions(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		out = append(out, summarizeSession(&sessions[i]))
	}
	return out, nil
}

// Wait blocks until in-flight completion hooks have returned.
func (m *Manager) Wait() {
	m.hooks.Wait()
}

// transition applies op atomically. apply runs with the session loaded and
// before the status changes; it may reject the request.
func (m *Manager) transition(ctx context.Context, userID string, id uuid.UUID, op models.Operation, apply func(*models.Session, time.Time) error) (sess *models.Session, err error) {
	ctx, span := tracer.Start(ctx, "training."+string(op),
		trace.WithAttributes(attribute.String("session.id", id.String())))
	defer func() { endSpan(span, err) }()

	now := m.now().UTC()
	var from models.SessionStatus
	sess, err = m.store.UpdateSession(ctx, userID, id, func(s *models.Session) error {
		from = s.Status
		next, ok := models.NextStatus(s.Status, op)
		if !ok {
			return apperr.InvalidTransition(string(op), string(s.Status))
		}
		if apply != nil {
			if err := apply(s, now); err != nil {
				return err
			}
		}
		s.Status = next
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("session transition", "user", userID, "session", id, "op", op, "from", from, "to", sess.Status)
	return sess, nil
}

// fireCompletionHook runs the hook detached from the request. Its outcome is only logged.
func (m *Manager) fireCompletionHook(ctx context.Context, sess *models.Session) {
	if m.hook == nil {
		return
	}
	hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.hookTimeout)
	m.hooks.Add(1)
	go func() {
		defer m.hooks.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("completion hook panicked", "session", sess.ID, "panic", r)
			}
		}()
		if err := m.hook.OnSessionCompleted(hookCtx, sess); err != nil {
			m.logger.Warn("completion hook failed", "session", sess.ID, "error", err)
		}
	}()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
