package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/trainlog/internal/apperr"
	"github.com/meltforce/trainlog/internal/training"
)

// DataSource abstracts the data layer for MCP tools. Local (in-process) and
// HTTPClient (remote via REST API) satisfy this interface.
//
// Week and month arguments are "YYYY-MM-DD" and "YYYY-MM" strings interpreted
// in the reporting timezone of the data source; "" means the current one.
type DataSource interface {
	GetActiveSession(ctx context.Context, userID string) (*training.SessionDetails, error)
	GetSessionDetails(ctx context.Context, userID string, id uuid.UUID) (*training.SessionDetails, error)
	ListSessions(ctx context.Context, userID string, from, to time.Time) ([]training.SessionSummary, error)
	GetWeeklySummary(ctx context.Context, userID, date string) (*training.WeeklySummary, error)
	GetMonthlySummary(ctx context.Context, userID, month string) (*training.MonthlySummary, error)
}

// Local serves MCP tools straight from the session engine.
type Local struct {
	Sessions *training.Manager
	Reports  *training.Aggregator
	now      func() time.Time
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = (*Local)(nil)

// NewLocal creates a Local data source.
func NewLocal(sessions *training.Manager, reports *training.Aggregator) *Local {
	return &Local{Sessions: sessions, Reports: reports, now: time.Now}
}

func (l *Local) GetActiveSession(ctx context.Context, userID string) (*training.SessionDetails, error) {
	sess, err := l.Sessions.GetActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	return training.NewSessionDetails(sess), nil
}

func (l *Local) GetSessionDetails(ctx context.Context, userID string, id uuid.UUID) (*training.SessionDetails, error) {
	return l.Sessions.GetSessionDetails(ctx, userID, id)
}

func (l *Local) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]training.SessionSummary, error) {
	return l.Sessions.ListSessions(ctx, userID, from, to)
}

func (l *Local) GetWeeklySummary(ctx context.Context, userID, date string) (*training.WeeklySummary, error) {
	ref := l.now()
	if date != "" {
		t, err := time.ParseInLocation(time.DateOnly, date, l.Reports.Location())
		if err != nil {
			return nil, apperr.Validation("date must be YYYY-MM-DD, got %q", date)
		}
		ref = t
	}
	return l.Reports.WeeklySummary(ctx, userID, ref)
}

func (l *Local) GetMonthlySummary(ctx context.Context, userID, month string) (*training.MonthlySummary, error) {
	now := l.now().In(l.Reports.Location())
	year, m := now.Year(), now.Month()
	if month != "" {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			return nil, apperr.Validation("month must be YYYY-MM, got %q", month)
		}
		year, m = t.Year(), t.Month()
	}
	return l.Reports.MonthlySummary(ctx, userID, year, m)
}
