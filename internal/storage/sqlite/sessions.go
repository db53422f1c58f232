package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/trainlog/internal/models"
	"github.com/meltforce/trainlog/internal/storage"
)

const sessionColumns = `id, user_id, plan_day_id, plan_day_name, status, started_at, ended_at,
	session_rpe, notes, metrics, created_at, updated_at, deleted_at`

const setColumns = `ss.id, ss.session_id, ss.exercise_id, ss.exercise_name, ss.plan_item_id,
	ss.item_index, ss.set_index, ss.planned_set_count, ss.planned_reps_kind, ss.planned_reps_min,
	ss.planned_reps_max, ss.planned_reps_token, ss.planned_rest_seconds, ss.planned_weight_kg,
	ss.actual_reps, ss.actual_weight_kg, ss.actual_rpe, ss.actual_rest_seconds,
	ss.actual_duration_seconds, ss.actual_notes, ss.is_skipped, ss.completed_at,
	ss.created_at, ss.updated_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CreateSession inserts a session and its materialized sets in one transaction.
func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	metrics, err := storage.EncodeMetrics(sess.Metrics)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return mapError("starting transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workout_sessions (id, user_id, plan_day_id, plan_day_name, status, started_at,
		 ended_at, session_rpe, notes, metrics, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID.String(), sess.UserID, toNullString(sess.PlanDayID), sess.PlanDayName,
		string(sess.Status), toMillis(sess.StartedAt), toNullMillis(sess.EndedAt),
		toNullInt(sess.SessionRPE), sess.Notes, nullableText(metrics),
		toMillis(sess.CreatedAt), toMillis(sess.UpdatedAt))
	if err != nil {
		return mapError("inserting session", err)
	}

	if err := insertSets(ctx, tx, sess.Sets); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError("committing session", err)
	}
	return nil
}

func insertSets(ctx context.Context, tx *sql.Tx, sets []models.SessionSet) error {
	if len(sets) == 0 {
		return nil
	}

	const cols = 19
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"
	query := `INSERT INTO session_sets (id, session_id, exercise_id, exercise_name, plan_item_id,
		item_index, set_index, planned_set_count, planned_reps_kind, planned_reps_min, planned_reps_max,
		planned_reps_token, planned_rest_seconds, planned_weight_kg, actual_rest_seconds, actual_weight_kg,
		is_skipped, created_at, updated_at) VALUES `
	args := make([]any, 0, len(sets)*cols)
	valueStrings := make([]string, 0, len(sets))

	for _, set := range sets {
		valueStrings = append(valueStrings, row)
		p := set.Planned
		args = append(args, set.ID.String(), set.SessionID.String(), set.ExerciseID, set.ExerciseName,
			toNullString(set.PlanItemID), set.ItemIndex, set.SetIndex, p.SetCount, string(p.Reps.Kind),
			p.Reps.Min, p.Reps.Max, p.Reps.Token, p.RestSeconds, toNullFloat(p.WeightKg),
			toNullInt(set.Actual.RestSeconds), toNullFloat(set.Actual.WeightKg), set.Actual.IsSkipped,
			toMillis(set.CreatedAt), toMillis(set.UpdatedAt))
	}

	if _, err := tx.ExecContext(ctx, query+strings.Join(valueStrings, ", "), args...); err != nil {
		return mapError("inserting session sets", err)
	}
	return nil
}

// GetSession retrieves a session owned by userID, with its sets.
func (s *Store) GetSession(ctx context.Context, userID string, id uuid.UUID) (*models.Session, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		id.String(), userID)
	sess, err := scanSession(row)
	if err != nil {
		return nil, notFoundOr("querying session", "session", id.String(), err)
	}
	if sess.Sets, err = querySets(ctx, s.sqlDB, `ss.session_id = ?`, sess.ID.String()); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetActiveSession returns the user's IN_PROGRESS or PAUSED session, or nil if none.
func (s *Store) GetActiveSession(ctx context.Context, userID string) (*models.Session, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE user_id = ? AND status IN ('IN_PROGRESS', 'PAUSED') AND deleted_at IS NULL`,
		userID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("querying active session", err)
	}
	if sess.Sets, err = querySets(ctx, s.sqlDB, `ss.session_id = ?`, sess.ID.String()); err != nil {
		return nil, err
	}
	return sess, nil
}

// ListSessions returns the user's sessions that started in [start, end), oldest first,
// each with its sets.
func (s *Store) ListSessions(ctx context.Context, userID string, start, end time.Time) ([]models.Session, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE user_id = ? AND started_at >= ? AND started_at < ? AND deleted_at IS NULL
		 ORDER BY started_at, id`,
		userID, toMillis(start), toMillis(end))
	if err != nil {
		return nil, mapError("querying sessions", err)
	}

	var sessions []models.Session
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, mapError("scanning session", err)
		}
		index[sess.ID] = len(sessions)
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, mapError("iterating sessions", err)
	}
	// Release the only connection before querying sets.
	rows.Close()
	if len(sessions) == 0 {
		return sessions, nil
	}

	sets, err := querySets(ctx, s.sqlDB,
		`ss.session_id IN (SELECT id FROM workout_sessions
		 WHERE user_id = ? AND started_at >= ? AND started_at < ? AND deleted_at IS NULL)`,
		userID, toMillis(start), toMillis(end))
	if err != nil {
		return nil, err
	}
	for _, set := range sets {
		if i, ok := index[set.SessionID]; ok {
			sessions[i].Sets = append(sessions[i].Sets, set)
		}
	}
	return sessions, nil
}

// UpdateSession reads the session inside a write transaction, lets mutate change it,
// and writes the result back conditional on the status it read.
func (s *Store) UpdateSession(ctx context.Context, userID string, id uuid.UUID, mutate func(*models.Session) error) (*models.Session, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError("starting transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		id.String(), userID)
	sess, err := scanSession(row)
	if err != nil {
		return nil, notFoundOr("reading session", "session", id.String(), err)
	}
	if sess.Sets, err = querySets(ctx, tx, `ss.session_id = ?`, sess.ID.String()); err != nil {
		return nil, err
	}

	prev := sess.Status
	if err := mutate(sess); err != nil {
		return nil, err
	}

	metrics, err := storage.EncodeMetrics(sess.Metrics)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE workout_sessions
		 SET status = ?, ended_at = ?, session_rpe = ?, notes = ?, metrics = ?,
		     updated_at = ?, deleted_at = ?
		 WHERE id = ? AND status = ?`,
		string(sess.Status), toNullMillis(sess.EndedAt), toNullInt(sess.SessionRPE), sess.Notes,
		nullableText(metrics), toMillis(sess.UpdatedAt), toNullMillis(sess.DeletedAt),
		sess.ID.String(), string(prev))
	if err != nil {
		return nil, mapError("updating session", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, mapError("updating session", err)
	} else if n == 0 {
		return nil, fmt.Errorf("updating session %s: %w", sess.ID, storage.StatusChangedError(prev))
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError("committing session update", err)
	}
	return sess, nil
}

// UpdateSet reads a set with its parent session status inside a write transaction and
// lets mutate change the set's actual performance. The write only lands while the
// session is IN_PROGRESS.
func (s *Store) UpdateSet(ctx context.Context, userID string, setID uuid.UUID, mutate func(models.SessionStatus, *models.SessionSet) error) (*models.SessionSet, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError("starting transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+setColumns+`, ws.status
		 FROM session_sets ss
		 JOIN workout_sessions ws ON ws.id = ss.session_id
		 WHERE ss.id = ? AND ws.user_id = ? AND ws.deleted_at IS NULL`,
		setID.String(), userID)
	var status string
	set, err := scanSet(row, &status)
	if err != nil {
		return nil, notFoundOr("reading set", "set", setID.String(), err)
	}

	if err := mutate(models.SessionStatus(status), set); err != nil {
		return nil, err
	}

	a := set.Actual
	res, err := tx.ExecContext(ctx,
		`UPDATE session_sets
		 SET actual_reps = ?, actual_weight_kg = ?, actual_rpe = ?, actual_rest_seconds = ?,
		     actual_duration_seconds = ?, actual_notes = ?, is_skipped = ?, completed_at = ?,
		     updated_at = ?
		 WHERE id = ? AND EXISTS (
		     SELECT 1 FROM workout_sessions ws
		     WHERE ws.id = session_sets.session_id AND ws.status = 'IN_PROGRESS'
		 )`,
		toNullInt(a.Reps), toNullFloat(a.WeightKg), toNullInt(a.RPE), toNullInt(a.RestSeconds),
		toNullInt(a.DurationSeconds), toNullString(a.Notes), a.IsSkipped, toNullMillis(a.CompletedAt),
		toMillis(set.UpdatedAt), set.ID.String())
	if err != nil {
		return nil, mapError("updating set", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, mapError("updating set", err)
	} else if n == 0 {
		return nil, storage.ErrSessionNotInProgress
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError("committing set update", err)
	}
	return set, nil
}

func querySets(ctx context.Context, q queryer, where string, args ...any) ([]models.SessionSet, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+setColumns+` FROM session_sets ss WHERE `+where+`
		 ORDER BY ss.session_id, ss.item_index, ss.set_index`,
		args...)
	if err != nil {
		return nil, mapError("querying sets", err)
	}
	defer rows.Close()

	var sets []models.SessionSet
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, mapError("scanning set", err)
		}
		sets = append(sets, *set)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterating sets", err)
	}
	return sets, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		sess                           models.Session
		status                         string
		planDayID, metrics             sql.NullString
		startedAt, createdAt, updated  int64
		endedAt, deletedAt, sessionRPE sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &planDayID, &sess.PlanDayName, &status, &startedAt,
		&endedAt, &sessionRPE, &sess.Notes, &metrics, &createdAt, &updated, &deletedAt); err != nil {
		return nil, err
	}
	sess.PlanDayID = fromNullString(planDayID)
	sess.Status = models.SessionStatus(status)
	sess.StartedAt = fromMillis(startedAt)
	sess.EndedAt = fromNullMillis(endedAt)
	sess.SessionRPE = fromNullInt(sessionRPE)
	sess.CreatedAt = fromMillis(createdAt)
	sess.UpdatedAt = fromMillis(updated)
	sess.DeletedAt = fromNullMillis(deletedAt)
	m, err := storage.DecodeMetrics([]byte(metrics.String))
	if err != nil {
		return nil, err
	}
	sess.Metrics = m
	return &sess, nil
}

// scanSet reads the set columns, followed by any extra destinations selected after them.
func scanSet(row scanner, extra ...any) (*models.SessionSet, error) {
	var (
		set                               models.SessionSet
		planItemID, actualNotes           sql.NullString
		repsKind                          string
		plannedWeight, actualWeight       sql.NullFloat64
		actualReps, actualRPE, actualRest sql.NullInt64
		actualDuration, completedAt       sql.NullInt64
		createdAt, updatedAt              int64
	)
	p := &set.Planned
	dest := []any{&set.ID, &set.SessionID, &set.ExerciseID, &set.ExerciseName, &planItemID,
		&set.ItemIndex, &set.SetIndex, &p.SetCount, &repsKind, &p.Reps.Min,
		&p.Reps.Max, &p.Reps.Token, &p.RestSeconds, &plannedWeight,
		&actualReps, &actualWeight, &actualRPE, &actualRest,
		&actualDuration, &actualNotes, &set.Actual.IsSkipped, &completedAt,
		&createdAt, &updatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	set.PlanItemID = fromNullString(planItemID)
	p.Reps.Kind = models.RepsKind(repsKind)
	p.WeightKg = fromNullFloat(plannedWeight)
	set.Actual = models.ActualPerformance{
		Reps:            fromNullInt(actualReps),
		WeightKg:        fromNullFloat(actualWeight),
		RPE:             fromNullInt(actualRPE),
		RestSeconds:     fromNullInt(actualRest),
		DurationSeconds: fromNullInt(actualDuration),
		Notes:           fromNullString(actualNotes),
		IsSkipped:       set.Actual.IsSkipped,
		CompletedAt:     fromNullMillis(completedAt),
	}
	set.CreatedAt = fromMillis(createdAt)
	set.UpdatedAt = fromMillis(updatedAt)
	return &set, nil
}

func nullableText(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
