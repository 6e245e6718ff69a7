package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrDaemonUnavailable reports that the control API could not be reached.
var ErrDaemonUnavailable = errors.New("vigil daemon unavailable")

// Client talks to the daemon control API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for the API listening on bind ("host:port" or a
// full URL). An empty token sends no Authorization header.
func NewClient(bind, token string) *Client {
	base := strings.TrimSpace(bind)
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Status returns daemon and sweep state.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ledger returns the records of the live sweep.
func (c *Client) Ledger(ctx context.Context) (*LedgerResponse, error) {
	var resp LedgerResponse
	if err := c.do(ctx, http.MethodGet, "/api/ledger", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResetLedger abandons the live sweep. The daemon refuses while a
// continuation is running.
func (c *Client) ResetLedger(ctx context.Context) (*ActionResponse, error) {
	return c.action(ctx, "/api/ledger/reset")
}

// Activate permits sweeping and starts a continuation.
func (c *Client) Activate(ctx context.Context) (*ActionResponse, error) {
	return c.action(ctx, "/api/sweep/activate")
}

// Deactivate forbids sweeping and cancels the running continuation.
func (c *Client) Deactivate(ctx context.Context) (*ActionResponse, error) {
	return c.action(ctx, "/api/sweep/deactivate")
}

// Start launches a continuation when none is running.
func (c *Client) Start(ctx context.Context) (*ActionResponse, error) {
	return c.action(ctx, "/api/sweep/start")
}

// Stop requests cancellation of the running continuation.
func (c *Client) Stop(ctx context.Context) (*ActionResponse, error) {
	return c.action(ctx, "/api/sweep/stop")
}

// NotifyAvailable tells the daemon that identifier is ready to fetch.
func (c *Client) NotifyAvailable(ctx context.Context, identifier string) (*ActionResponse, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, errors.New("identifier is required")
	}
	return c.action(ctx, "/api/objects/"+url.PathEscape(identifier)+"/available")
}

// TestNotification asks the daemon to publish a test event.
func (c *Client) TestNotification(ctx context.Context) (*ActionResponse, error) {
	return c.action(ctx, "/api/notifications/test")
}

func (c *Client) action(ctx context.Context, path string) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.do(ctx, http.MethodPost, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
