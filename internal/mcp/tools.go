package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/trainlog/internal/apperr"
)

// defaultTimeRange returns start/end defaulting to the last 30 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -30)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.DateOnly, s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetActiveSession = mcp.NewTool("get_active_session",
	mcp.WithDescription("Get the user's in-progress or paused workout session, including every planned set, what was actually performed, and the session totals so far."),
)

var toolGetSessionDetails = mcp.NewTool("get_session_details",
	mcp.WithDescription("Get one workout session with per-set planned vs actual performance, completion state, volume, and a per-exercise breakdown."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID")),
)

var toolListSessions = mcp.NewTool("list_sessions",
	mcp.WithDescription("List workout sessions that started within a time range, oldest first, with status, completion percentage, volume, and duration."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
)

var toolGetWeeklySummary = mcp.NewTool("get_weekly_summary",
	mcp.WithDescription("Summarize the Monday-to-Sunday training week containing a date: session counts, set completion, total volume, average duration, and the most trained plan day."),
	mcp.WithString("date", mcp.Description("Any date in the week (YYYY-MM-DD). Defaults to today.")),
)

var toolGetMonthlySummary = mcp.NewTool("get_monthly_summary",
	mcp.WithDescription("Summarize a calendar month with a breakdown per training week and a short feedback note on consistency and volume trend."),
	mcp.WithString("month", mcp.Description("Month as YYYY-MM. Defaults to the current month.")),
)

// --- Tool handlers ---

func (h *handlers) getActiveSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	details, err := h.ds.GetActiveSession(ctx, UserIDFromContext(ctx))
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return mcp.NewToolResultText("No workout session is in progress."), nil
		}
		return h.toolError("get_active_session", err), nil
	}
	return jsonResult(details), nil
}

func (h *handlers) getSessionDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError("session_id must be a UUID"), nil
	}

	details, err := h.ds.GetSessionDetails(ctx, UserIDFromContext(ctx), id)
	if err != nil {
		return h.toolError("get_session_details", err), nil
	}
	return jsonResult(details), nil
}

func (h *handlers) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	sessions, err := h.ds.ListSessions(ctx, UserIDFromContext(ctx), start, end)
	if err != nil {
		return h.toolError("list_sessions", err), nil
	}
	return jsonResult(sessions), nil
}

func (h *handlers) getWeeklySummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := h.ds.GetWeeklySummary(ctx, UserIDFromContext(ctx), req.GetString("date", ""))
	if err != nil {
		return h.toolError("get_weekly_summary", err), nil
	}
	return jsonResult(summary), nil
}

func (h *handlers) getMonthlySummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := h.ds.GetMonthlySummary(ctx, UserIDFromContext(ctx), req.GetString("month", ""))
	if err != nil {
		return h.toolError("get_monthly_summary", err), nil
	}
	return jsonResult(summary), nil
}

// toolError reports a failed call to the model. Caller mistakes are returned
// as-is; anything else is logged.
func (h *handlers) toolError(tool string, err error) *mcp.CallToolResult {
	switch apperr.CodeOf(err) {
	case apperr.CodeNotFound, apperr.CodeValidation:
		return mcp.NewToolResultError(err.Error())
	}
	h.log.Error("mcp "+tool, "error", err)
	return mcp.NewToolResultError("query failed: " + err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed")
	}
	return result
}
