package training

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meltforce/trainlog/internal/apperr"
	"github.com/meltforce/trainlog/internal/models"
)

// Aggregator rolls sessions up into weekly and monthly summaries. Week and
// month boundaries are evaluated in the reporting location.
type Aggregator struct {
	store SessionStore
	loc   *time.Location
}

// NewAggregator creates an Aggregator. A nil location means UTC.
func NewAggregator(store SessionStore, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{store: store, loc: loc}
}

// Location returns the reporting location.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// Totals are the counts, sums, and means over a group of sessions.
type Totals struct {
	TotalSessions           int     `json:"total_sessions"`
	CompletedSessions       int     `json:"completed_sessions"`
	TotalSets               int     `json:"total_sets"`
	CompletedSets           int     `json:"completed_sets"`
	SkippedSets             int     `json:"skipped_sets"`
	TotalVolume             float64 `json:"total_volume"`
	TotalDurationMinutes    float64 `json:"total_duration_minutes"`
	AvgCompletionPercentage float64 `json:"avg_completion_percentage"`
	AvgVolume               float64 `json:"avg_volume"`
	AvgDurationMinutes      float64 `json:"avg_duration_minutes"`
	MostTrainedDayName      string  `json:"most_trained_day_name"`
}

// WeeklySummary covers one ISO week, Monday through Sunday.
type WeeklySummary struct {
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`
	Totals
	// DailySummaries holds one entry per session, ordered by start time.
	DailySummaries []SessionSummary `json:"daily_summaries"`
}

// MonthlySummary covers one calendar month, with the ISO weeks that intersect it.
type MonthlySummary struct {
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	MonthStart time.Time `json:"month_start"`
	MonthEnd   time.Time `json:"month_end"`
	Totals
	Weeks    []WeeklySummary `json:"weeks"`
	Feedback string          `json:"feedback"`
}

// WeekStart returns midnight of the Monday of the ISO week containing t, in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeeklySummary summarizes every session, of any status, that started in the
// ISO week containing ref. A week without sessions yields zero totals.
func (a *Aggregator) WeeklySummary(ctx context.Context, userID string, ref time.Time) (ws *WeeklySummary, err error) {
	ctx, span := tracer.Start(ctx, "training.WeeklySummary")
	defer func() { endSpan(span, err) }()

	start := WeekStart(ref, a.loc)
	end := start.AddDate(0, 0, 7)
	sessions, err := a.store.ListSessions(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("sessions", len(sessions)))
	summary := buildWeek(start, end, sessions)
	return &summary, nil
}

// MonthlySummary summarizes the calendar month, bucketed into the ISO weeks
// that intersect it. Each week is summarized in full, including days outside
// the month.
func (a *Aggregator) MonthlySummary(ctx context.Context, userID string, year int, month time.Month) (ms *MonthlySummary, err error) {
	if month < time.January || month > time.December {
		return nil, apperr.Validation("month must be between 1 and 12, got %d", int(month))
	}
	if year < 1 || year > 9999 {
		return nil, apperr.Validation("year %d is out of range", year)
	}

	ctx, span := tracer.Start(ctx, "training.MonthlySummary",
		trace.WithAttributes(attribute.Int("year", year), attribute.Int("month", int(month))))
	defer func() { endSpan(span, err) }()

	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, a.loc)
	monthEnd := monthStart.AddDate(0, 1, 0)
	spanStart := WeekStart(monthStart, a.loc)
	spanEnd := WeekStart(monthEnd.Add(-time.Nanosecond), a.loc).AddDate(0, 0, 7)

	sessions, err := a.store.ListSessions(ctx, userID, spanStart, spanEnd)
	if err != nil {
		return nil, err
	}

	ms = &MonthlySummary{
		Year:       year,
		Month:      int(month),
		MonthStart: monthStart,
		MonthEnd:   monthEnd,
		Totals:     computeTotals(within(sessions, monthStart, monthEnd)),
		Weeks:      []WeeklySummary{},
	}
	for ws := spanStart; ws.Before(monthEnd); ws = ws.AddDate(0, 0, 7) {
		we := ws.AddDate(0, 0, 7)
		ms.Weeks = append(ms.Weeks, buildWeek(ws, we, within(sessions, ws, we)))
	}
	ms.Feedback = Feedback(language.English, monthStart, ms.Totals, ms.Weeks)
	return ms, nil
}

func buildWeek(start, end time.Time, sessions []models.Session) WeeklySummary {
	ws := WeeklySummary{
		WeekStart:      start,
		WeekEnd:        end,
		Totals:         computeTotals(sessions),
		DailySummaries: make([]SessionSummary, 0, len(sessions)),
	}
	for i := range sessions {
		ws.DailySummaries = append(ws.DailySummaries, summarizeSession(&sessions[i]))
	}
	return ws
}

// within returns the sessions that started in [start, end). The input order is kept.
func within(sessions []models.Session, start, end time.Time) []models.Session {
	var out []models.Session
	for _, s := range sessions {
		if !s.StartedAt.Before(start) && s.StartedAt.Before(end) {
			out = append(out, s)
		}
	}
	return out
}

// computeTotals expects sessions ordered by start time; the first session
// with the highest volume names the most trained day.
func computeTotals(sessions []models.Session) Totals {
	var t Totals
	var completionSum float64
	var timed int
	bestVolume := math.Inf(-1)
	for i := range sessions {
		s := &sessions[i]
		agg := models.Aggregate(s)
		t.TotalSessions++
		if s.Status == models.StatusCompleted {
			t.CompletedSessions++
		}
		t.TotalSets += agg.TotalSets
		t.CompletedSets += agg.CompletedSets
		t.SkippedSets += agg.SkippedSets
		t.TotalVolume += agg.TotalVolume
		completionSum += agg.CompletionPercentage
		if agg.DurationMinutes != nil {
			t.TotalDurationMinutes += *agg.DurationMinutes
			timed++
		}
		if agg.TotalVolume > bestVolume {
			bestVolume = agg.TotalVolume
			t.MostTrainedDayName = s.PlanDayName
		}
	}
	if t.TotalSessions > 0 {
		t.AvgCompletionPercentage = round1(completionSum / float64(t.TotalSessions))
		t.AvgVolume = round1(t.TotalVolume / float64(t.TotalSessions))
	}
	if timed > 0 {
		t.AvgDurationMinutes = round1(t.TotalDurationMinutes / float64(timed))
	}
	t.TotalDurationMinutes = round1(t.TotalDurationMinutes)
	return t
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Feedback produces a short coaching note for a month, with numbers
// formatted for the given language.
func Feedback(tag language.Tag, monthStart time.Time, totals Totals, weeks []WeeklySummary) string {
	p := message.NewPrinter(tag)
	label := monthStart.Format("January 2006")
	if totals.TotalSessions == 0 {
		return p.Sprintf("No sessions logged in %s.", label)
	}

	msg := p.Sprintf("%d sessions in %s, %d completed, %.1f kg total volume.",
		totals.TotalSessions, label, totals.CompletedSessions, totals.TotalVolume)

	switch {
	case totals.AvgCompletionPercentage >= 90:
		msg += " Nearly every planned set was done."
	case totals.AvgCompletionPercentage < 60:
		msg += p.Sprintf(" Only %.0f%% of planned sets were done on average; consider trimming the plan.",
			totals.AvgCompletionPercentage)
	}

	var first, last *WeeklySummary
	for i := range weeks {
		if weeks[i].TotalSessions == 0 {
			continue
		}
		if first == nil {
			first = &weeks[i]
		}
		last = &weeks[i]
	}
	if first != nil && last != first && first.TotalVolume > 0 {
		change := (last.TotalVolume - first.TotalVolume) / first.TotalVolume * 100
		switch {
		case change >= 5:
			msg += p.Sprintf(" Weekly volume rose %.0f%% over the month.", change)
		case change <= -5:
			msg += p.Sprintf(" Weekly volume fell %.0f%% over the month.", -change)
		default:
			msg += " Weekly volume held steady."
		}
	}
	return msg
}
