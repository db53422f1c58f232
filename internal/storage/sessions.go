package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meltforce/trainlog/internal/models"
)

const sessionColumns = `id, user_id, plan_day_id, plan_day_name, status, started_at, ended_at,
	session_rpe, notes, metrics, created_at, updated_at, deleted_at`

const setColumns = `ss.id, ss.session_id, ss.exercise_id, ss.exercise_name, ss.plan_item_id,
	ss.item_index, ss.set_index, ss.planned_set_count, ss.planned_reps_kind, ss.planned_reps_min,
	ss.planned_reps_max, ss.planned_reps_token, ss.planned_rest_seconds, ss.planned_weight_kg,
	ss.actual_reps, ss.actual_weight_kg, ss.actual_rpe, ss.actual_rest_seconds,
	ss.actual_duration_seconds, ss.actual_notes, ss.is_skipped, ss.completed_at,
	ss.created_at, ss.updated_at`

// CreateSession inserts a session and its materialized sets in one transaction.
func (db *DB) CreateSession(ctx context.Context, sess *models.Session) error {
	metrics, err := EncodeMetrics(sess.Metrics)
	if err != nil {
		return err
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return mapError("starting transaction", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO workout_sessions (id, user_id, plan_day_id, plan_day_name, status, started_at,
		 ended_at, session_rpe, notes, metrics, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		sess.ID, sess.UserID, sess.PlanDayID, sess.PlanDayName, string(sess.Status), sess.StartedAt,
		sess.EndedAt, sess.SessionRPE, sess.Notes, metrics, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return mapError("inserting session", err)
	}

	if err := insertSets(ctx, tx, sess.Sets); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError("committing session", err)
	}
	return nil
}

func insertSets(ctx context.Context, tx pgx.Tx, sets []models.SessionSet) error {
	if len(sets) == 0 {
		return nil
	}

	const cols = 19
	query := `INSERT INTO session_sets (id, session_id, exercise_id, exercise_name, plan_item_id,
		item_index, set_index, planned_set_count, planned_reps_kind, planned_reps_min, planned_reps_max,
		planned_reps_token, planned_rest_seconds, planned_weight_kg, actual_rest_seconds, actual_weight_kg,
		is_skipped, created_at, updated_at) VALUES `
	args := make([]any, 0, len(sets)*cols)
	valueStrings := make([]string, 0, len(sets))

	for i, s := range sets {
		base := i * cols
		placeholders := make([]string, cols)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		p := s.Planned
		args = append(args, s.ID, s.SessionID, s.ExerciseID, s.ExerciseName, s.PlanItemID,
			s.ItemIndex, s.SetIndex, p.SetCount, string(p.Reps.Kind), p.Reps.Min, p.Reps.Max,
			p.Reps.Token, p.RestSeconds, p.WeightKg, s.Actual.RestSeconds, s.Actual.WeightKg,
			s.Actual.IsSkipped, s.CreatedAt, s.UpdatedAt)
	}

	if _, err := tx.Exec(ctx, query+strings.Join(valueStrings, ","), args...); err != nil {
		return mapError("inserting session sets", err)
	}
	return nil
}

// GetSession retrieves a session owned by userID, with its sets.
func (db *DB) GetSession(ctx context.Context, userID string, id uuid.UUID) (*models.Session, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`,
		id, userID)
	sess, err := scanSession(row)
	if err != nil {
		return nil, notFoundOr("querying session", "session", id.String(), err)
	}
	if sess.Sets, err = querySets(ctx, db.Pool, `ss.session_id = $1`, sess.ID); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetActiveSession returns the user's IN_PROGRESS or PAUSED session, or nil if none.
func (db *DB) GetActiveSession(ctx context.Context, userID string) (*models.Session, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE user_id = $1 AND status IN ('IN_PROGRESS', 'PAUSED') AND deleted_at IS NULL`,
		userID)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("querying active session", err)
	}
	if sess.Sets, err = querySets(ctx, db.Pool, `ss.session_id = $1`, sess.ID); err != nil {
		return nil, err
	}
	return sess, nil
}

// ListSessions returns the user's sessions that started in [start, end), oldest first,
// each with its sets.
func (db *DB) ListSessions(ctx context.Context, userID string, start, end time.Time) ([]models.Session, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE user_id = $1 AND started_at >= $2 AND started_at < $3 AND deleted_at IS NULL
		 ORDER BY started_at, id`,
		userID, start, end)
	if err != nil {
		return nil, mapError("querying sessions", err)
	}
	defer rows.Close()

	var sessions []models.Session
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, mapError("scanning session", err)
		}
		index[sess.ID] = len(sessions)
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterating sessions", err)
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	sets, err := querySets(ctx, db.Pool,
		`ss.session_id IN (SELECT id FROM workout_sessions
		 WHERE user_id = $1 AND started_at >= $2 AND started_at < $3 AND deleted_at IS NULL)`,
		userID, start, end)
	if err != nil {
		return nil, err
	}
	for _, s := range sets {
		if i, ok := index[s.SessionID]; ok {
			sessions[i].Sets = append(sessions[i].Sets, s)
		}
	}
	return sessions, nil
}

// UpdateSession locks the session row, lets mutate change it, and writes the result back.
// The write is conditional on the status read under the lock, so concurrent transitions
// on the same session serialize and at most one of them wins from any given state.
func (db *DB) UpdateSession(ctx context.Context, userID string, id uuid.UUID, mutate func(*models.Session) error) (*models.Session, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, mapError("starting transaction", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		 FOR UPDATE`,
		id, userID)
	sess, err := scanSession(row)
	if err != nil {
		return nil, notFoundOr("locking session", "session", id.String(), err)
	}
	if sess.Sets, err = querySets(ctx, tx, `ss.session_id = $1`, sess.ID); err != nil {
		return nil, err
	}

	prev := sess.Status
	if err := mutate(sess); err != nil {
		return nil, err
	}

	metrics, err := EncodeMetrics(sess.Metrics)
	if err != nil {
		return nil, err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE workout_sessions
		 SET status = $3, ended_at = $4, session_rpe = $5, notes = $6, metrics = $7,
		     updated_at = $8, deleted_at = $9
		 WHERE id = $1 AND status = $2`,
		sess.ID, string(prev), string(sess.Status), sess.EndedAt, sess.SessionRPE, sess.Notes,
		metrics, sess.UpdatedAt, sess.DeletedAt)
	if err != nil {
		return nil, mapError("updating session", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("updating session %s: %w", sess.ID, StatusChangedError(prev))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError("committing session update", err)
	}
	return sess, nil
}

// UpdateSet locks a set together with its parent session status and lets mutate change
// the set's actual performance. The write only lands while the session is IN_PROGRESS.
func (db *DB) UpdateSet(ctx context.Context, userID string, setID uuid.UUID, mutate func(models.SessionStatus, *models.SessionSet) error) (*models.SessionSet, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, mapError("starting transaction", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx,
		`SELECT `+setColumns+`, ws.status
		 FROM session_sets ss
		 JOIN workout_sessions ws ON ws.id = ss.session_id
		 WHERE ss.id = $1 AND ws.user_id = $2 AND ws.deleted_at IS NULL
		 FOR UPDATE OF ss, ws`,
		setID, userID)
	var status string
	set, err := scanSet(row, &status)
	if err != nil {
		return nil, notFoundOr("locking set", "set", setID.String(), err)
	}

	if err := mutate(models.SessionStatus(status), set); err != nil {
		return nil, err
	}

	a := set.Actual
	tag, err := tx.Exec(ctx,
		`UPDATE session_sets
		 SET actual_reps = $2, actual_weight_kg = $3, actual_rpe = $4, actual_rest_seconds = $5,
		     actual_duration_seconds = $6, actual_notes = $7, is_skipped = $8, completed_at = $9,
		     updated_at = $10
		 WHERE id = $1 AND EXISTS (
		     SELECT 1 FROM workout_sessions ws
		     WHERE ws.id = session_sets.session_id AND ws.status = 'IN_PROGRESS'
		 )`,
		set.ID, a.Reps, a.WeightKg, a.RPE, a.RestSeconds, a.DurationSeconds, a.Notes,
		a.IsSkipped, a.CompletedAt, set.UpdatedAt)
	if err != nil {
		return nil, mapError("updating set", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrSessionNotInProgress
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError("committing set update", err)
	}
	return set, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func querySets(ctx context.Context, q querier, where string, args ...any) ([]models.SessionSet, error) {
	rows, err := q.Query(ctx,
		`SELECT `+setColumns+` FROM session_sets ss WHERE `+where+`
		 ORDER BY ss.session_id, ss.item_index, ss.set_index`,
		args...)
	if err != nil {
		return nil, mapError("querying sets", err)
	}
	defer rows.Close()

	var sets []models.SessionSet
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			return nil, mapError("scanning set", err)
		}
		sets = append(sets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterating sets", err)
	}
	return sets, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	var status string
	var metrics []byte
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanDayID, &s.PlanDayName, &status, &s.StartedAt,
		&s.EndedAt, &s.SessionRPE, &s.Notes, &metrics, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt); err != nil {
		return nil, err
	}
	s.Status = models.SessionStatus(status)
	m, err := DecodeMetrics(metrics)
	if err != nil {
		return nil, err
	}
	s.Metrics = m
	return &s, nil
}

// scanSet reads the set columns, followed by any extra destinations selected after them.
func scanSet(row pgx.Row, extra ...any) (*models.SessionSet, error) {
	var s models.SessionSet
	var repsKind string
	p, a := &s.Planned, &s.Actual
	dest := []any{&s.ID, &s.SessionID, &s.ExerciseID, &s.ExerciseName, &s.PlanItemID,
		&s.ItemIndex, &s.SetIndex, &p.SetCount, &repsKind, &p.Reps.Min,
		&p.Reps.Max, &p.Reps.Token, &p.RestSeconds, &p.WeightKg,
		&a.Reps, &a.WeightKg, &a.RPE, &a.RestSeconds,
		&a.DurationSeconds, &a.Notes, &a.IsSkipped, &a.CompletedAt,
		&s.CreatedAt, &s.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.Reps.Kind = models.RepsKind(repsKind)
	return &s, nil
}
