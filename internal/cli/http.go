package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/kpisync/internal/domain/model"
)

// Client calls the kpisync HTTP API.
type Client struct {
	baseURL string
	key     string
	client  *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL, key string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		client:  &http.Client{Timeout: timeout},
	}
}

// SyncRequest mirrors the POST /api/kpi_sync body.
type SyncRequest struct {
	ProcessIndividual bool   `json:"process_individual"`
	ProcessTeamLeader bool   `json:"process_team_leader"`
	Therapist         string `json:"therapist,omitempty"`
}

// Health is the /api/health response.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// StatusError is returned for responses the command cannot render.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Sync triggers a run and waits for its result. A 500 still carries a
// result, which is returned along with the status code.
func (c *Client) Sync(ctx context.Context, req SyncRequest) (model.Result, int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.Result{}, 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	resp, data, err := c.do(ctx, http.MethodPost, "/api/kpi_sync", body)
	if err != nil {
		return model.Result{}, 0, err
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusInternalServerError:
		var res model.Result
		if err := json.Unmarshal(data, &res); err != nil {
			return model.Result{}, resp.StatusCode, fmt.Errorf("decode result: %w", err)
		}
		return res, resp.StatusCode, nil
	default:
		return model.Result{}, resp.StatusCode, &StatusError{Code: resp.StatusCode, Body: snippet(data)}
	}
}

// Health calls the health endpoint.
func (c *Client) Health(ctx context.Context) (Health, error) {
	resp, data, err := c.do(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return Health{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Health{}, &StatusError{Code: resp.StatusCode, Body: snippet(data)}
	}
	var h Health
	if err := json.Unmarshal(data, &h); err != nil {
		return Health{}, fmt.Errorf("decode health: %w", err)
	}
	return h, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, []byte, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("x-functions-key", c.key)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, data, nil
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
