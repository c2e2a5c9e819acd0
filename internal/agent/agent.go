// Package agent is a reference device agent. It receives programs from the
// dispatcher and runs them through a local command that talks to the board.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"remoteq/internal/core"
)

// Agent runs Command once per job with the program on stdin. TARGET_BOARD and
// TARGET_PORT are set in the command's environment.
type Agent struct {
	Command string
	Timeout time.Duration
}

// Routes returns the agent's HTTP handler.
func (a *Agent) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/job", a.handleJob)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (a *Agent) handleJob(w http.ResponseWriter, r *http.Request) {
	var req core.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger := log.WithFields(log.Fields{"board": req.TargetBoard, "port": req.TargetPort})
	logger.Info("Running job")

	output, err := a.run(r.Context(), req)
	if err != nil {
		logger.WithError(err).Warn("Job failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(core.JobResponse{Status: output})
}

func (a *Agent) run(ctx context.Context, req core.JobRequest) (string, error) {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", a.Command)
	cmd.Stdin = bytes.NewBufferString(req.Assembly)
	// Children of sh may hold the output pipe open after sh is killed.
	cmd.WaitDelay = time.Second
	cmd.Env = append(os.Environ(),
		"TARGET_BOARD="+req.TargetBoard,
		"TARGET_PORT="+req.TargetPort,
	)
	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", errors.Errorf("command did not finish within %s", a.Timeout)
	}
	if err != nil {
		return "", errors.Wrapf(err, "command failed: %s", bytes.TrimSpace(output))
	}
	return string(output), nil
}
