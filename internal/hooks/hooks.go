// Package hooks provides completion hooks notified after a session is completed.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/meltforce/trainlog/internal/models"
)

// LogHook logs each completed session.
type LogHook struct {
	Logger *slog.Logger
}

// OnSessionCompleted logs a one-line summary of the session.
func (h LogHook) OnSessionCompleted(_ context.Context, sess *models.Session) error {
	agg := models.Aggregate(sess)
	attrs := []any{
		"user", sess.UserID,
		"session", sess.ID,
		"plan_day", sess.PlanDayName,
		"sets", agg.TotalSets,
		"completed_sets", agg.CompletedSets,
		"volume", agg.TotalVolume,
	}
	if agg.DurationMinutes != nil {
		attrs = append(attrs, "duration_min", *agg.DurationMinutes)
	}
	h.Logger.Info("session completed", attrs...)
	return nil
}

// WebhookPayload is the JSON body posted by Webhook.
type WebhookPayload struct {
	Event      string                   `json:"event"`
	Session    *models.Session          `json:"session"`
	Aggregates models.SessionAggregates `json:"aggregates"`
}

// Webhook posts completed sessions as JSON to a URL.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook creates a Webhook posting to url.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// OnSessionCompleted posts the session. Non-2xx responses are errors.
func (w *Webhook) OnSessionCompleted(ctx context.Context, sess *models.Session) error {
	body, err := json.Marshal(WebhookPayload{
		Event:      "session.completed",
		Session:    sess,
		Aggregates: models.Aggregate(sess),
	})
	if err != nil {
		return fmt.Errorf("webhook: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: %s returned %d", w.url, resp.StatusCode)
	}
	return nil
}

// CompletionHook matches training.CompletionHook.
type CompletionHook interface {
	OnSessionCompleted(ctx context.Context, sess *models.Session) error
}

// Multi calls every hook in order and joins their errors.
type Multi []CompletionHook

// OnSessionCompleted runs all hooks, even after one fails.
func (m Multi) OnSessionCompleted(ctx context.Context, sess *models.Session) error {
	var errs []error
	for _, h := range m {
		if err := h.OnSessionCompleted(ctx, sess); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
