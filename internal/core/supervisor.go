package core

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"remoteq/internal/metrics"
)

// Supervisor keeps one dispatcher loop alive per device. A loop that crashes
// is restarted after an exponential backoff without touching the others.
type Supervisor struct {
	dispatchers []*Dispatcher
	minBackoff  time.Duration
	maxBackoff  time.Duration

	// run is the loop body; tests swap it to inject crashes.
	run func(ctx context.Context, d *Dispatcher) error
}

// NewSupervisor supervises the given dispatchers. Zero backoff bounds default
// to 1s and 1m.
func NewSupervisor(dispatchers []*Dispatcher, minBackoff, maxBackoff time.Duration) *Supervisor {
	if minBackoff <= 0 {
		minBackoff = time.Second
	}
	if maxBackoff < minBackoff {
		maxBackoff = time.Minute
	}
	return &Supervisor{
		dispatchers: dispatchers,
		minBackoff:  minBackoff,
		maxBackoff:  maxBackoff,
		run: func(ctx context.Context, d *Dispatcher) error {
			return d.Run(ctx)
		},
	}
}

// Run starts every dispatcher and blocks until ctx is cancelled and all loops
// have returned.
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, d := range s.dispatchers {
		wg.Add(1)
		go func(d *Dispatcher) {
			defer wg.Done()
			s.supervise(ctx, d)
		}(d)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Supervisor) supervise(ctx context.Context, d *Dispatcher) {
	logger := log.WithField("device", d.device.Name)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.minBackoff
	b.MaxInterval = s.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		started := time.Now()
		err := s.runSafely(ctx, d)
		if ctx.Err() != nil {
			logger.Info("Dispatcher stopped")
			return
		}
		if time.Since(started) > s.maxBackoff {
			b.Reset()
		}

		wait := b.NextBackOff()
		metrics.RecordRestart(d.device.Name)
		logger.WithError(err).Errorf("Dispatcher exited, restarting in %s", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (s *Supervisor) runSafely(ctx context.Context, d *Dispatcher) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	err = s.run(ctx, d)
	if err == nil {
		err = errors.New("dispatcher returned without error")
	}
	return err
}
