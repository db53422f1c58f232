package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/trainlog/internal/apperr"
	"github.com/meltforce/trainlog/internal/training"
)

// HTTPClient implements DataSource by calling the trainlog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
//
// The userID argument of each method is ignored: the server derives the
// caller from the credentials the client was created with.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	userID     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey and
// userID are sent as X-API-Key and X-User-ID when set; leave them empty when
// the server identifies callers by tailnet login.
func NewHTTPClient(baseURL, apiKey, userID string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		userID:     userID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Infrastructure("httpclient: "+path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return responseError(path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

// responseError rebuilds the domain error from an API error body so callers
// can branch on its code.
func responseError(path string, status int, body []byte) error {
	var e struct {
		Error string      `json:"error"`
		Code  apperr.Code `json:"code"`
	}
	if json.Unmarshal(body, &e) == nil && e.Code != "" {
		return apperr.New(e.Code, e.Error)
	}
	if status == http.StatusNotFound {
		return apperr.New(apperr.CodeNotFound, fmt.Sprintf("httpclient: %s not found", path))
	}
	return fmt.Errorf("httpclient: %s returned %d: %s", path, status, body)
}

func (c *HTTPClient) GetActiveSession(ctx context.Context, _ string) (*training.SessionDetails, error) {
	var details training.SessionDetails
	if err := c.get(ctx, "/api/v1/sessions/active", nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *HTTPClient) GetSessionDetails(ctx context.Context, _ string, id uuid.UUID) (*training.SessionDetails, error) {
	var details training.SessionDetails
	if err := c.get(ctx, "/api/v1/sessions/"+id.String(), nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *HTTPClient) ListSessions(ctx context.Context, _ string, from, to time.Time) ([]training.SessionSummary, error) {
	params := url.Values{}
	params.Set("from", from.Format(time.RFC3339))
	params.Set("to", to.Format(time.RFC3339))

	var sessions []training.SessionSummary
	if err := c.get(ctx, "/api/v1/sessions", params, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *HTTPClient) GetWeeklySummary(ctx context.Context, _ string, date string) (*training.WeeklySummary, error) {
	params := url.Values{}
	if date != "" {
		params.Set("date", date)
	}

	var summary training.WeeklySummary
	if err := c.get(ctx, "/api/v1/summary/weekly", params, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *HTTPClient) GetMonthlySummary(ctx context.Context, _ string, month string) (*training.MonthlySummary, error) {
	params := url.Values{}
	if month != "" {
		params.Set("month", month)
	}

	var summary training.MonthlySummary
	if err := c.get(ctx, "/api/v1/summary/monthly", params, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
