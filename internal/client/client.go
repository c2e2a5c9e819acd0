// Package client talks to a running gateway. It backs the remoteq CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when the gateway does not know the id.
var ErrNotFound = errors.New("job not found")

// Client is a small JSON client for the gateway routes.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the gateway at baseURL, e.g. http://localhost:5000.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// StatusResult is the decoded answer of a status query. Status holds either
// a queue position (float64 from JSON) or a status name.
type StatusResult struct {
	ReqID  uint64 `json:"req_id"`
	Status any    `json:"status"`
	Device string `json:"device,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Submit queues assembly for board and returns the job id.
func (c *Client) Submit(ctx context.Context, board, assembly, email string) (uint64, error) {
	var out struct {
		Status any `json:"status"`
	}
	err := c.post(ctx, "/enqueue", map[string]string{
		"target_board": board,
		"assembly":     assembly,
		"result_email": email,
	}, &out)
	if err != nil {
		return 0, err
	}
	id, ok := out.Status.(float64)
	if !ok {
		return 0, errors.Errorf("unexpected enqueue answer: %v", out.Status)
	}
	return uint64(id), nil
}

// Status queries a job. A terminal answer is only returned once by the server.
func (c *Client) Status(ctx context.Context, id uint64) (StatusResult, error) {
	var out StatusResult
	err := c.post(ctx, "/status", map[string]uint64{"req_id": id}, &out)
	return out, err
}

// Cancel removes a queued job.
func (c *Client) Cancel(ctx context.Context, id uint64) error {
	var out StatusResult
	return c.post(ctx, "/delete", map[string]uint64{"req_id": id}, &out)
}

// Position returns the 1-based position of a queued job.
func (c *Client) Position(ctx context.Context, id uint64) (int, error) {
	var out StatusResult
	if err := c.post(ctx, "/position", map[string]uint64{"req_id": id}, &out); err != nil {
		return 0, err
	}
	pos, ok := out.Status.(float64)
	if !ok {
		return 0, errors.Errorf("unexpected position answer: %v", out.Status)
	}
	return int(pos), nil
}

// Boards lists the boards the server has devices for.
func (c *Client) Boards(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/target_boards", nil)
	if err != nil {
		return nil, err
	}
	var boards []string
	if err := c.do(req, &boards); err != nil {
		return nil, err
	}
	return boards, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 300:
		return errors.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
