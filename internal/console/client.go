// SPDX-License-Identifier: MIT

// Package console is the HTTP client for the management console: display
// bootstrap, health probing and error reporting. The push channel has its
// own client in internal/push.
package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumacast/lumacast/internal/log"
	"github.com/lumacast/lumacast/internal/model"
)

// Options configures a console client.
type Options struct {
	Timeout time.Duration
	Token   string
}

// Client interacts with the console HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a console client.
func New(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      opts.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("console"),
	}
}

// BootstrapResponse is the initial display + playlist pair.
type BootstrapResponse struct {
	Display  model.Display   `json:"display"`
	Playlist *model.Playlist `json:"playlist,omitempty"`
}

// Bootstrap fetches the display record and its assigned playlist, if any.
func (c *Client) Bootstrap(ctx context.Context, displayID string) (*BootstrapResponse, error) {
	var res BootstrapResponse
	path := "/api/displays/" + url.PathEscape(displayID) + "/bootstrap"
	if err := c.get(ctx, path, &res); err != nil {
		return nil, err
	}
	if res.Playlist != nil {
		res.Playlist.Normalize()
		if err := res.Playlist.Validate(); err != nil {
			return nil, fmt.Errorf("bootstrap playlist: %w", err)
		}
	}
	return &res, nil
}

// Health probes the console's health endpoint. Success means reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	return nil
}

// ReportError sends a caught rendering error to the console. Best-effort:
// a failed report is logged and dropped.
func (c *Client) ReportError(displayID string, err error, stack []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	body, merr := json.Marshal(map[string]string{
		"displayId":      displayID,
		"error":          err.Error(),
		"componentStack": string(stack),
	})
	if merr != nil {
		return
	}
	req, rerr := c.newRequest(ctx, http.MethodPost, "/api/errors", bytes.NewReader(body))
	if rerr != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, derr := c.httpClient.Do(req)
	if derr != nil {
		c.logger.Warn().Err(derr).Str(log.FieldEvent, "console.error_report_failed").Msg("error report failed")
		return
	}
	_ = resp.Body.Close()
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid console URL: %w", err)
	}
	u.Path = path

	var req *http.Request
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}
