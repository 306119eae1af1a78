// Package client talks to a tst server on behalf of the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/server"
	"github.com/Tiliavir/trivial-study-tracker/internal/timer"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return e.Message
}

// Unwrap maps the wire kind back to the engine's sentinel, so callers can
// use errors.Is(err, timer.ErrNotFound) across the network.
func (e *APIError) Unwrap() error {
	return timer.ErrorForKind(e.Kind)
}

// Client is an authenticated tst API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes client construction.
type Option func(*options)

type options struct {
	base *http.Client
}

// WithHTTPClient sets the transport the bearer-token client wraps.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.base = c
		}
	}
}

// New returns a client for the server at baseURL. The token is attached to
// every request as a bearer credential. An empty token sends none.
func New(baseURL, token string, opts ...Option) *Client {
	o := options{base: &http.Client{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	httpClient := o.base
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, o.base)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		}))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Health reports server liveness. It needs no token.
func (c *Client) Health(ctx context.Context) (server.HealthResponse, error) {
	var resp server.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &resp)
	return resp, err
}

// Me returns the user the token belongs to.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodGet, "/api/me", nil, &user)
	return user, err
}

// TasksToday lists today's tasks of the caller, or of everyone if all is set.
func (c *Client) TasksToday(ctx context.Context, all bool) ([]model.Task, error) {
	path := "/api/tasks/today"
	if all {
		path += "?all=true"
	}
	var tasks []model.Task
	err := c.do(ctx, http.MethodGet, path, nil, &tasks)
	return tasks, err
}

// Plan submits a batch of tasks for today.
func (c *Client) Plan(ctx context.Context, planned []model.PlannedTask) ([]model.Task, error) {
	var resp server.PlanResponse
	err := c.do(ctx, http.MethodPost, "/api/tasks/batch", server.PlanRequest{Tasks: planned}, &resp)
	return resp.Tasks, err
}

// Start puts a task in progress.
func (c *Client) Start(ctx context.Context, taskID string) (server.StartResponse, error) {
	var resp server.StartResponse
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "start"), nil, &resp)
	return resp, err
}

// Pause banks the running session of a task.
func (c *Client) Pause(ctx context.Context, taskID string) (server.PauseResponse, error) {
	var resp server.PauseResponse
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "pause"), nil, &resp)
	return resp, err
}

// Complete finishes a task.
func (c *Client) Complete(ctx context.Context, taskID string) (server.CompleteResponse, error) {
	var resp server.CompleteResponse
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "complete"), nil, &resp)
	return resp, err
}

// Leaderboard returns the all-time standings.
func (c *Client) Leaderboard(ctx context.Context) ([]model.Standing, error) {
	var rows []model.Standing
	err := c.do(ctx, http.MethodGet, "/api/leaderboard", nil, &rows)
	return rows, err
}

// Stream calls fn with every snapshot pushed by the server until ctx is
// cancelled, the server ends the stream, or fn returns an error. A nil
// return after cancellation is not an error.
func (c *Client) Stream(ctx context.Context, fn func(model.Snapshot) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stream", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := newSSEScanner(resp.Body)
	for scanner.Next() {
		var snap model.Snapshot
		if err := json.Unmarshal([]byte(scanner.Event().Data), &snap); err != nil {
			return fmt.Errorf("decoding snapshot: %w", err)
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}

func taskPath(taskID, action string) string {
	return "/api/tasks/" + url.PathEscape(taskID) + "/" + action
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("reading error response: %w", err)
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body server.ErrorResponse
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Kind = body.Kind
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// IsUnauthenticated reports whether err means the token was missing or
// rejected.
func IsUnauthenticated(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
