package migration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/josephgoksu/loomboard/internal/task"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Importer stores prepared tasks for one owner and reports how many were
// written.
type Importer interface {
	Import(ctx context.Context, tasks []task.ImportTask) (int, error)
}

// APIImporter posts to the session API's migrate endpoint.
type APIImporter struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIImporter authenticates with a session token. A nil client gets an
// instrumented default with a 30 s timeout.
func NewAPIImporter(baseURL, sessionToken string, client *http.Client) *APIImporter {
	if client == nil {
		client = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &APIImporter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   sessionToken,
		http:    client,
	}
}

func (a *APIImporter) Import(ctx context.Context, tasks []task.ImportTask) (int, error) {
	payload, err := json.Marshal(map[string]any{"tasks": tasks})
	if err != nil {
		return 0, fmt.Errorf("encode tasks: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/tasks/migrate", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("migrate request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Imported int    `json:"imported"`
		Error    string `json:"error"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK {
		if body.Error != "" {
			return 0, fmt.Errorf("migrate failed (%d): %s", resp.StatusCode, body.Error)
		}
		return 0, fmt.Errorf("migrate failed: HTTP %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return 0, fmt.Errorf("decode response: %w", decodeErr)
	}
	return body.Imported, nil
}

// ServiceImporter writes straight into a local board.
type ServiceImporter struct {
	Service *task.Service
	UserID  string
}

func (s ServiceImporter) Import(ctx context.Context, tasks []task.ImportTask) (int, error) {
	return s.Service.Import(ctx, task.SessionActor(s.UserID), tasks)
}
