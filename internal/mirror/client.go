// Package mirror pushes dashboard snapshots to a remote endpoint. Pushes are
// best effort: failures are logged and never reach the caller that changed
// the dashboard.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wcatz/dashboard-builder/internal/dashboard"
)

// Pusher sends one snapshot to the mirror.
type Pusher interface {
	Push(ctx context.Context, snap dashboard.Snapshot) error
}

// Client posts snapshots as JSON to a fixed URL.
type Client struct {
	url   string
	token string
	http  *http.Client
}

// NewClient creates a client for url. A non-empty token is sent as a bearer
// token.
func NewClient(url, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:   strings.TrimRight(url, "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
	}
}

// URL returns the endpoint the client pushes to.
func (c *Client) URL() string {
	return c.url
}

// Push posts snap. Any status outside 2xx is an error.
func (c *Client) Push(ctx context.Context, snap dashboard.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pushing dashboard %s: %w", snap.UID, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mirror returned %d for %s: %s", resp.StatusCode, snap.UID, strings.TrimSpace(string(body)))
	}
	return nil
}
