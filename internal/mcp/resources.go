package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/trainlog/internal/apperr"
)

func (h *handlers) activeSession(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	details, err := h.ds.GetActiveSession(ctx, UserIDFromContext(ctx))
	if err != nil && apperr.CodeOf(err) != apperr.CodeNotFound {
		return nil, err
	}

	var v any = map[string]any{"active": false}
	if details != nil {
		v = details
	}
	return jsonContents(req.Params.URI, v)
}

func (h *handlers) thisWeek(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	summary, err := h.ds.GetWeeklySummary(ctx, UserIDFromContext(ctx), "")
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, summary)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
