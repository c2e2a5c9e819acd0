package core

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

// Executor runs a job on a device and returns the device output.
type Executor interface {
	Execute(ctx context.Context, device *Device, job *Job) (string, error)
}

// JobRequest is the body sent to a device agent.
type JobRequest struct {
	TargetPort  string `json:"target_port"`
	TargetBoard string `json:"target_board"`
	Assembly    string `json:"assembly"`
}

// JobResponse is the body a device agent answers with. Status carries the
// execution output.
type JobResponse struct {
	Status string `json:"status"`
}

// maxResponseBytes caps how much of an agent response is read.
const maxResponseBytes = 16 << 20

// HTTPExecutor posts jobs to the device agent at Device.Endpoint + "/job".
type HTTPExecutor struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPExecutor returns an executor that gives up on a device after timeout.
// A zero timeout falls back to five minutes; a call is never unbounded.
func NewHTTPExecutor(client *http.Client, timeout time.Duration) *HTTPExecutor {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPExecutor{client: client, timeout: timeout}
}

// Execute sends one request and blocks until the agent answers, the timeout
// fires or ctx is cancelled. Every failure is a *DispatchError.
func (e *HTTPExecutor) Execute(ctx context.Context, device *Device, job *Job) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	url := strings.TrimRight(device.Endpoint, "/") + "/job"
	fail := func(code int, err error) (string, error) {
		return "", &DispatchError{Device: device.Name, Endpoint: url, StatusCode: code, Err: err}
	}

	body, err := json.Marshal(JobRequest{
		TargetPort:  device.Port,
		TargetBoard: job.TargetBoard,
		Assembly:    job.Payload,
	})
	if err != nil {
		return fail(0, errors.Wrap(err, "encode request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fail(0, errors.Wrap(err, "build request"))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fail(0, errors.Wrapf(ctx.Err(), "no answer within %s", e.timeout))
		}
		return fail(0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fail(resp.StatusCode, errors.Wrap(err, "read response"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, errors.Errorf("agent answered %q", strings.TrimSpace(string(data))))
	}

	var out JobResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return fail(resp.StatusCode, errors.Wrap(err, "decode response"))
	}
	return out.Status, nil
}
