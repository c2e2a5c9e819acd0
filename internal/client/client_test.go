package client

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

func newGateway(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/enqueue", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "esp32c3", req["target_board"])
		assert.Equal(t, "nop", req["assembly"])
		_ = json.NewEncoder(w).Encode(map[string]any{"status": 5})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"req_id": 5, "status": "Completed", "result": "ok", "device": "dev-1"})
	})
	mux.HandleFunc("/position", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"req_id": 5, "status": 3})
	})
	mux.HandleFunc("/delete", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"req_id": 5, "status": -1})
	})
	mux.HandleFunc("/target_boards", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"esp32c3", "stm32"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	srv := newGateway(t)
	c := New(srv.URL+"/", time.Second)
	ctx := context.Background()

	id, err := c.Submit(ctx, "esp32c3", "nop", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), id)

	st, err := c.Status(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Completed", st.Status)
	assert.Equal(t, "ok", st.Result)
	assert.Equal(t, "dev-1", st.Device)

	pos, err := c.Position(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)

	assert.ErrorIs(t, c.Cancel(ctx, 5), ErrNotFound)

	boards, err := c.Boards(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"esp32c3", "stm32"}, boards)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Boards(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
