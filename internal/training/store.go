// Package training implements the workout session lifecycle: starting a
// session from a plan day, recording set performance against the plan, and
// rolling sessions up into weekly and monthly summaries.
package training

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/trainlog/internal/models"
	"github.com/meltforce/trainlog/internal/storage"
	"github.com/meltforce/trainlog/internal/storage/sqlite"
)

// SessionStore persists sessions and their sets.
//
// Reads never return soft-deleted sessions. CreateSession fails with a
// Conflict error when the user already has an active session; the check is
// enforced by the store itself.
type SessionStore interface {
	CreateSession(ctx context.Context, sess *models.Session) error
	GetSession(ctx context.Context, userID string, id uuid.UUID) (*models.Session, error)
	// GetActiveSession returns nil, nil when the user has no active session.
	GetActiveSession(ctx context.Context, userID string) (*models.Session, error)
	ListSessions(ctx context.Context, userID string, start, end time.Time) ([]models.Session, error)
	// UpdateSession applies mutate atomically. The write is rejected if the
	// session's status changed after it was read.
	UpdateSession(ctx context.Context, userID string, id uuid.UUID, mutate func(*models.Session) error) (*models.Session, error)
	// UpdateSet applies mutate to a set's actual performance. The write only
	// lands while the parent session is IN_PROGRESS.
	UpdateSet(ctx context.Context, userID string, setID uuid.UUID, mutate func(models.SessionStatus, *models.SessionSet) error) (*models.SessionSet, error)
}

// PlanCatalog resolves plan days. It returns a NotFound error for plan days
// that do not exist or are not owned by the user.
type PlanCatalog interface {
	GetPlanDay(ctx context.Context, userID, planDayID string) (*models.PlanDay, error)
}

// CompletionHook is notified after a session is completed. Failures are
// logged and never affect the completion itself.
type CompletionHook interface {
	OnSessionCompleted(ctx context.Context, sess *models.Session) error
}

var (
	_ SessionStore = (*storage.DB)(nil)
	_ SessionStore = (*sqlite.Store)(nil)
)
