package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"remoteq/internal/metrics"
)

// ResultStore persists the outcome of a finished job.
type ResultStore interface {
	SaveResult(ctx context.Context, job *Job) error
}

// Notifier tells the submitter that a job finished.
type Notifier interface {
	Notify(ctx context.Context, job *Job) error
}

// DefaultPollInterval is how long an idle dispatcher waits before looking at
// the pending queue again.
const DefaultPollInterval = 20 * time.Second

// Dispatcher drives a single device: it takes the oldest pending job for the
// device's board, runs it remotely and hands the finished job to the
// completed queue. Only one job is in flight per dispatcher.
type Dispatcher struct {
	device    *Device
	pending   *Queue
	completed *Queue
	inflight  *Inflight

	executor Executor
	store    ResultStore // optional
	notifier Notifier    // optional

	pollInterval time.Duration
	logger       *log.Entry
}

// DispatcherDeps are the collaborators shared by all dispatchers.
type DispatcherDeps struct {
	Pending      *Queue
	Completed    *Queue
	Inflight     *Inflight
	Executor     Executor
	Store        ResultStore
	Notifier     Notifier
	PollInterval time.Duration
}

// NewDispatcher binds a dispatcher to device.
func NewDispatcher(device *Device, deps DispatcherDeps) *Dispatcher {
	poll := deps.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Dispatcher{
		device:       device,
		pending:      deps.Pending,
		completed:    deps.Completed,
		inflight:     deps.Inflight,
		executor:     deps.Executor,
		store:        deps.Store,
		notifier:     deps.Notifier,
		pollInterval: poll,
		logger: log.WithFields(log.Fields{
			"device": device.Name,
			"board":  device.BoardID,
		}),
	}
}

// Device returns the device this dispatcher serves.
func (d *Dispatcher) Device() *Device { return d.device }

// Run polls until ctx is cancelled. A failing iteration never ends the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Dispatcher started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Step(ctx) {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.pollInterval):
		}
	}
}

// Step runs at most one job and reports whether one was found.
func (d *Dispatcher) Step(ctx context.Context) bool {
	job, ok := d.pending.Claim(ForBoard(d.device.BoardID), func(job *Job) {
		job.markDispatched(d.device.Name)
		d.inflight.add(job.ID, d.device.Name)
	})
	if !ok {
		return false
	}
	metrics.SetQueueLength(d.pending.Name(), d.pending.Len())

	d.device.setState(DeviceBusy)
	metrics.SetDeviceBusy(d.device.Name, d.device.BoardID, true)
	logger := d.logger.WithField("job_id", job.ID)
	logger.Info("Sending job to device")

	delivered := false
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Dispatch panicked: %v", r)
			if !delivered {
				if !job.Status.Terminal() {
					job.fail(errors.Errorf("internal error: %v", r))
				}
				d.deliver(job)
			}
		}
		d.device.setState(DeviceFree)
		metrics.SetDeviceBusy(d.device.Name, d.device.BoardID, false)
	}()

	start := time.Now()
	output, err := d.executor.Execute(ctx, d.device, job)
	if err != nil {
		logger.WithError(err).Warn("Job failed on device")
		job.fail(err)
	} else {
		logger.WithField("took", time.Since(start)).Info("Job completed on device")
		job.complete(output)
	}
	metrics.RecordFinished(job.TargetBoard, job.Status.String(), time.Since(start))

	// Side artifacts must survive shutdown of the loop context.
	sinkCtx := context.WithoutCancel(ctx)
	d.persist(sinkCtx, job, logger)
	d.notify(sinkCtx, job, logger)

	d.deliver(job)
	delivered = true
	return true
}

func (d *Dispatcher) persist(ctx context.Context, job *Job, logger *log.Entry) {
	if d.store == nil {
		return
	}
	if err := d.store.SaveResult(ctx, job); err != nil {
		metrics.RecordSinkFailure(metrics.SinkPersist)
		logger.WithError(&PersistenceError{JobID: job.ID, Err: err}).Error("Failed to save result")
	}
}

func (d *Dispatcher) notify(ctx context.Context, job *Job, logger *log.Entry) {
	if d.notifier == nil || job.ResultDestination == "" {
		return
	}
	if err := d.notifier.Notify(ctx, job); err != nil {
		metrics.RecordSinkFailure(metrics.SinkNotify)
		nerr := &NotificationError{JobID: job.ID, Destination: job.ResultDestination, Err: err}
		logger.WithError(nerr).Error("Failed to notify submitter")
	}
}

// deliver transfers ownership of job to the completed queue. The job is added
// there before it leaves the in-flight table so a status query never misses it.
func (d *Dispatcher) deliver(job *Job) {
	d.completed.Enqueue(job)
	d.inflight.remove(job.ID)
	metrics.SetQueueLength(d.completed.Name(), d.completed.Len())
}
