package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPExecutor_Success(t *testing.T) {
	var got JobRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/job", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(JobResponse{Status: "a0 = 1"})
	}))
	defer srv.Close()

	device := NewDevice("dev-1", "esp32c3", srv.URL+"/", "/dev/ttyUSB0")
	job := NewJob("esp32c3", "li a0, 1", "")

	out, err := NewHTTPExecutor(srv.Client(), time.Second).Execute(context.Background(), device, job)
	require.NoError(t, err)
	assert.Equal(t, "a0 = 1", out)
	assert.Equal(t, JobRequest{TargetPort: "/dev/ttyUSB0", TargetBoard: "esp32c3", Assembly: "li a0, 1"}, got)
}

func TestHTTPExecutor_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "flash failed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	device := NewDevice("dev-1", "esp32c3", srv.URL, "")
	_, err := NewHTTPExecutor(srv.Client(), time.Second).Execute(context.Background(), device, NewJob("esp32c3", "nop", ""))

	var derr *DispatchError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, http.StatusInternalServerError, derr.StatusCode)
	assert.Equal(t, "dev-1", derr.Device)
	assert.Contains(t, err.Error(), "flash failed")
}

func TestHTTPExecutor_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	device := NewDevice("dev-1", "esp32c3", srv.URL, "")
	_, err := NewHTTPExecutor(srv.Client(), 50*time.Millisecond).Execute(context.Background(), device, NewJob("esp32c3", "nop", ""))

	var derr *DispatchError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, err.Error(), "no answer within")
}

func TestHTTPExecutor_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	device := NewDevice("dev-1", "esp32c3", srv.URL, "")
	_, err := NewHTTPExecutor(srv.Client(), time.Second).Execute(context.Background(), device, NewJob("esp32c3", "nop", ""))
	var derr *DispatchError
	assert.ErrorAs(t, err, &derr)
}
