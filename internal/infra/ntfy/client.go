// Package ntfy delivers reminders to an ntfy topic over HTTP.
package ntfy

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"reminder_relay/internal/domain/push"
)

const maxErrorBody = 512

var _ push.Notifier = (*Client)(nil)

// Client posts plain-text messages to a single topic URL.
type Client struct {
	httpClient *http.Client
	topicURL   string
	tags       string
	click      string
}

func New(topicURL, tags, click string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		topicURL:   topicURL,
		tags:       tags,
		click:      click,
	}
}

// Deliver makes exactly one attempt. Only HTTP 200 counts as success.
func (c *Client) Deliver(ctx context.Context, title, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.topicURL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("error building ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	// Non-ASCII titles are sent RFC 2047 encoded, which ntfy decodes.
	req.Header.Set("Title", mime.QEncoding.Encode("utf-8", title))
	if c.tags != "" {
		req.Header.Set("Tags", c.tags)
	}
	if c.click != "" {
		req.Header.Set("Click", c.click)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending ntfy request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: ntfy status=%d, body=%s", push.ErrDeliveryFailed, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
