package mcp

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
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries = 2
	// RetryDelay is the fixed pause between attempts.
	RetryDelay = time.Second

	defaultTimeout = 30 * time.Second
)

// APIError is a non-2xx response from the token API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Retryable reports whether the failure is worth another attempt.
func (e *APIError) Retryable() bool { return e.Status >= http.StatusInternalServerError }

// Client calls the board's token API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	delay   time.Duration
	log     log.FieldLogger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithRetryDelay overrides RetryDelay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.delay = d }
}

// WithLogger sets where retry warnings go.
func WithLogger(l log.FieldLogger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient returns a client for the API at baseURL authenticating with token.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		delay: RetryDelay,
		log:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends one API call, retrying server and network failures. Client
// errors (4xx) are returned at once. out may be nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		err := c.once(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		lastErr = err

		if attempt < MaxRetries {
			c.log.Warnf("MCP API request failed (attempt %d/%d): %v. Retrying in %dms...",
				attempt+1, MaxRetries+1, err, c.delay.Milliseconds())
			timer := time.NewTimer(c.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// responseError prefers the server's {"error": "..."} message.
func responseError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// required returns the task or an error when the body carried none.
func (r taskResponse) required() (*Task, error) {
	if r.Task == nil {
		return nil, errors.New("API response did not include a task")
	}
	return r.Task, nil
}

func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var resp tasksResponse
	if err := c.Do(ctx, http.MethodGet, "/mcp/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var resp taskResponse
	if err := c.Do(ctx, http.MethodGet, "/mcp/tasks/get?id="+url.QueryEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.required()
}

func (c *Client) SearchTasks(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.Do(ctx, http.MethodPost, "/mcp/tasks/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) BoardSummary(ctx context.Context) (*BoardSummary, error) {
	var resp BoardSummary
	if err := c.Do(ctx, http.MethodPost, "/mcp/board/summary", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateTask(ctx context.Context, req CreateRequest) (*Task, error) {
	var resp taskResponse
	if err := c.Do(ctx, http.MethodPost, "/mcp/tasks/create", req, &resp); err != nil {
		return nil, err
	}
	return resp.required()
}

// UpdateTask sends a partial update. A nil value clears the field.
func (c *Client) UpdateTask(ctx context.Context, id string, updates map[string]any) (*Task, error) {
	var resp taskResponse
	body := map[string]any{"id": id, "updates": updates}
	if err := c.Do(ctx, http.MethodPost, "/mcp/tasks/update", body, &resp); err != nil {
		return nil, err
	}
	return resp.required()
}

func (c *Client) MoveTask(ctx context.Context, id, status string) (*Task, error) {
	var resp taskResponse
	body := map[string]string{"id": id, "status": status}
	if err := c.Do(ctx, http.MethodPost, "/mcp/tasks/move", body, &resp); err != nil {
		return nil, err
	}
	return resp.required()
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodPost, "/mcp/tasks/delete", map[string]string{"id": id}, nil)
}

func (c *Client) ArchiveTask(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodPost, "/mcp/tasks/archive", map[string]string{"id": id}, nil)
}

func (c *Client) GetActiveTask(ctx context.Context) (*Task, error) {
	var resp taskResponse
	if err := c.Do(ctx, http.MethodGet, "/mcp/tasks/active", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

func (c *Client) SetActiveTask(ctx context.Context, id string) (*Task, error) {
	var resp taskResponse
	if err := c.Do(ctx, http.MethodPost, "/mcp/tasks/active", map[string]string{"id": id}, &resp); err != nil {
		return nil, err
	}
	return resp.required()
}

func (c *Client) ClearActiveTask(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/mcp/tasks/active/clear", struct{}{}, nil)
}
