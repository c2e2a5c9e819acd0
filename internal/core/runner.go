package core

import (
	"context"
	"crypto/ed25519"
	"time"

	log "github.com/sirupsen/logrus"

	"remoteq/internal/blockchain"
	"remoteq/internal/metrics"
	"remoteq/internal/storage"
	"remoteq/pkg/utils"
)

// RunnerConfig lists what the runner needs. Results, Ledger and Notifier are
// optional.
type RunnerConfig struct {
	Registry *Registry
	Executor Executor
	Results  *storage.ResultStorage
	Ledger   *blockchain.Ledger
	PrivKey  ed25519.PrivateKey
	PubKey   ed25519.PublicKey
	Notifier Notifier

	PollInterval      time.Duration
	MinRestartBackoff time.Duration
	MaxRestartBackoff time.Duration
}

// Runner ties together the queues, one dispatcher per device, the supervisor
// and the gateway-facing service.
type Runner struct {
	Pending   *Queue
	Completed *Queue
	Inflight  *Inflight

	service     *Service
	supervisor  *Supervisor
	dispatchers []*Dispatcher
}

// NewRunner builds the engine. Nothing runs until Run is called.
func NewRunner(cfg RunnerConfig) *Runner {
	pending := NewQueue("pending")
	completed := NewQueue("completed")
	inflight := NewInflight()

	var store ResultStore
	if cfg.Results != nil || cfg.Ledger != nil {
		store = &archiveStore{
			results: cfg.Results,
			ledger:  cfg.Ledger,
			priv:    cfg.PrivKey,
			pub:     cfg.PubKey,
		}
	}

	deps := DispatcherDeps{
		Pending:      pending,
		Completed:    completed,
		Inflight:     inflight,
		Executor:     cfg.Executor,
		Store:        store,
		Notifier:     cfg.Notifier,
		PollInterval: cfg.PollInterval,
	}
	dispatchers := make([]*Dispatcher, 0, cfg.Registry.Len())
	for _, device := range cfg.Registry.Devices() {
		dispatchers = append(dispatchers, NewDispatcher(device, deps))
	}

	return &Runner{
		Pending:     pending,
		Completed:   completed,
		Inflight:    inflight,
		service:     NewService(pending, completed, inflight, cfg.Registry),
		supervisor:  NewSupervisor(dispatchers, cfg.MinRestartBackoff, cfg.MaxRestartBackoff),
		dispatchers: dispatchers,
	}
}

// Service returns the gateway-facing API.
func (r *Runner) Service() *Service { return r.service }

// Dispatchers returns the dispatcher bound to each device.
func (r *Runner) Dispatchers() []*Dispatcher { return r.dispatchers }

// Run starts every dispatcher and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log.WithField("devices", len(r.dispatchers)).Info("Starting dispatchers")
	return r.supervisor.Run(ctx)
}

// archiveStore saves the result file and appends a signed ledger block. The
// ledger is best effort: a failure there is logged and does not fail the save.
type archiveStore struct {
	results *storage.ResultStorage
	ledger  *blockchain.Ledger
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
}

func (a *archiveStore) SaveResult(_ context.Context, job *Job) error {
	var (
		path    string
		saveErr error
	)
	if a.results != nil {
		path, saveErr = a.results.SaveResult(job.ID, job.Result)
	}
	if a.ledger == nil {
		return saveErr
	}

	hash := utils.HashString(job.Result)
	if saveErr == nil && path != "" {
		if h, err := utils.HashFile(path); err == nil {
			hash = h
		}
	}

	blk, err := a.ledger.Record(blockchain.Entry{
		JobID:      job.ID,
		Board:      job.TargetBoard,
		Device:     job.Device,
		Status:     job.Status.String(),
		ResultPath: path,
		ResultHash: hash,
	}, a.priv, a.pub)
	if err != nil {
		metrics.RecordSinkFailure(metrics.SinkLedger)
		log.WithError(err).WithField("job_id", job.ID).Warn("Cannot append ledger block")
	} else {
		log.WithFields(log.Fields{"job_id": job.ID, "block": blk.Index}).Debug("Ledger block appended")
	}
	return saveErr
}
