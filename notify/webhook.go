// Package notify delivers analysis results to the external automation
// webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vidscore/errs"

	"go.uber.org/zap"
)

// Payload is the webhook body. Field names are part of the contract
// with the downstream automation and must not change.
type Payload struct {
	Filename        string         `json:"filename"`
	TaskID          string         `json:"task_id"`
	VideoObjectName string         `json:"video_object_name"`
	Analysis        map[string]any `json:"analysis"`
	SunoRequest     map[string]any `json:"suno_request"`
	Transcript      string         `json:"transcript"`
}

type Client struct {
	url  string
	http *http.Client
	log  *zap.Logger
}

func New(url string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// Send posts the payload. A timeout is reported as ErrUpstreamTimeout.
func (c *Client) Send(ctx context.Context, p *Payload) error {
	if c.url == "" {
		return fmt.Errorf("webhook URL is not configured")
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errs.Timeout(err) {
			return fmt.Errorf("webhook delivery: %w", errs.ErrUpstreamTimeout)
		}
		return fmt.Errorf("webhook delivery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %s", resp.Status)
	}

	c.log.Info("webhook delivered",
		zap.String("task_id", p.TaskID),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}
