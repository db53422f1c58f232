package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meltforce/trainlog/internal/apperr"
	"github.com/meltforce/trainlog/internal/models"
)

// ActiveSessionIndex is the partial unique index enforcing one active session per user.
const ActiveSessionIndex = "workout_sessions_one_active_per_user"

// ErrActiveSessionExists is returned when a start races with, or follows, another active session.
var ErrActiveSessionExists = apperr.New(apperr.CodeConflict, "an active session already exists for this user")

// ErrSessionNotInProgress is returned when a set update loses the race against a pause or finish.
var ErrSessionNotInProgress = apperr.InvalidTransition("record a set for", "no longer IN_PROGRESS")

const pgUniqueViolation = "23505"

// mapError translates a pgx error into the domain taxonomy.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == ActiveSessionIndex {
		return ErrActiveSessionExists
	}
	return apperr.Infrastructure(op, err)
}

// notFoundOr maps pgx.ErrNoRows to a NotFound error for the given resource.
func notFoundOr(op, resource, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource, id)
	}
	return mapError(op, err)
}

// StatusChangedError reports a conditional write that found the session no longer in prev.
func StatusChangedError(prev models.SessionStatus) error {
	return apperr.New(apperr.CodeInvalidStateTransition,
		fmt.Sprintf("session is no longer %s", prev))
}
