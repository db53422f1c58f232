package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meltforce/trainlog/internal/apperr"
	"github.com/meltforce/trainlog/internal/models"
)

// HTTPClient reads plan days from the plan service's REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetPlanDay fetches a plan day on behalf of userID. The plan service answers
// 404 for plan days that are missing or owned by someone else.
func (c *HTTPClient) GetPlanDay(ctx context.Context, userID, planDayID string) (*models.PlanDay, error) {
	path := "/api/v1/plan-days/" + url.PathEscape(planDayID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: create request: %w", err)
	}
	req.Header.Set("X-User-ID", userID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Infrastructure("catalog: "+path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Infrastructure("catalog: read body", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperr.NotFound("plan day", planDayID)
	case resp.StatusCode != http.StatusOK:
		return nil, apperr.Infrastructure("catalog: "+path,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var day models.PlanDay
	if err := json.Unmarshal(body, &day); err != nil {
		return nil, apperr.Infrastructure("catalog: decode plan day", err)
	}
	if day.ID == "" {
		day.ID = planDayID
	}
	return &day, nil
}
