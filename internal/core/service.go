package core

import (
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"remoteq/internal/metrics"
)

// Submission is a request to run a program on a board.
type Submission struct {
	TargetBoard       string `validate:"required,max=128"`
	Payload           string `validate:"required"`
	ResultDestination string `validate:"max=320"`
}

// StatusReport answers a status query. Position is set only while the job is
// queued; Result and Error only once it is terminal.
type StatusReport struct {
	ID       uint64
	Status   Status
	Position int
	Device   string
	Result   string
	Error    string
}

// Overview is a snapshot of the whole system.
type Overview struct {
	Pending   []Job
	Completed []Job
	Inflight  int
	Devices   []DeviceInfo
}

// Service is the gateway-facing side of the core.
type Service struct {
	pending   *Queue
	completed *Queue
	inflight  *Inflight
	registry  *Registry
	validate  *validator.Validate
}

// NewService wires the service to the shared queues.
func NewService(pending, completed *Queue, inflight *Inflight, registry *Registry) *Service {
	return &Service{
		pending:   pending,
		completed: completed,
		inflight:  inflight,
		registry:  registry,
		validate:  validator.New(),
	}
}

// Submit validates sub and enqueues it. Invalid submissions never consume an
// id. The board is not checked against the registry: a job for an unknown
// board stays queued until cancelled.
func (s *Service) Submit(sub Submission) (uint64, error) {
	if err := s.validate.Struct(sub); err != nil {
		return 0, toSubmissionError(err)
	}

	id := s.pending.Enqueue(NewJob(sub.TargetBoard, sub.Payload, sub.ResultDestination))
	metrics.RecordSubmitted(sub.TargetBoard)
	metrics.SetQueueLength(s.pending.Name(), s.pending.Len())
	log.WithFields(log.Fields{"job_id": id, "board": sub.TargetBoard}).Info("Job queued")
	return id, nil
}

// Cancel removes a queued job. Jobs already handed to a device cannot be
// cancelled and yield a *NotFoundError.
func (s *Service) Cancel(id uint64) error {
	if !s.pending.DeleteByID(id) {
		return &NotFoundError{ID: id, Where: s.pending.Name()}
	}
	metrics.RecordCancelled()
	metrics.SetQueueLength(s.pending.Name(), s.pending.Len())
	log.WithField("job_id", id).Info("Job cancelled")
	return nil
}

// PositionOf returns the 1-based position of id in the pending queue.
func (s *Service) PositionOf(id uint64) (int, error) {
	pos, ok := s.pending.PositionOf(id)
	if !ok {
		return 0, &NotFoundError{ID: id, Where: s.pending.Name()}
	}
	return pos, nil
}

// StatusOf reports where a job is. A terminal job is removed from the
// completed queue by this call, so its result can be read exactly once.
//
// The lookups run completed, pending, in-flight, completed. A job moves
// pending to in-flight atomically and is added to completed before it leaves
// in-flight, so a job that exists is always seen by one of them.
func (s *Service) StatusOf(id uint64) (StatusReport, error) {
	if report, ok := s.takeCompleted(id); ok {
		return report, nil
	}
	if pos, ok := s.pending.PositionOf(id); ok {
		return StatusReport{ID: id, Status: StatusQueued, Position: pos}, nil
	}
	if device, ok := s.inflight.Device(id); ok {
		return StatusReport{ID: id, Status: StatusDispatched, Device: device}, nil
	}
	if report, ok := s.takeCompleted(id); ok {
		return report, nil
	}
	return StatusReport{}, &NotFoundError{ID: id}
}

func (s *Service) takeCompleted(id uint64) (StatusReport, bool) {
	job, ok := s.completed.DequeueByID(id)
	if !ok {
		return StatusReport{}, false
	}
	metrics.SetQueueLength(s.completed.Name(), s.completed.Len())
	return StatusReport{
		ID:     job.ID,
		Status: job.Status,
		Device: job.Device,
		Result: job.Result,
		Error:  job.Error,
	}, true
}

// ListBoards returns the distinct boards served by the registry.
func (s *Service) ListBoards() []string { return s.registry.Boards() }

// Overview returns a snapshot of queues and devices.
func (s *Service) Overview() Overview {
	return Overview{
		Pending:   s.pending.Snapshot(),
		Completed: s.completed.Snapshot(),
		Inflight:  s.inflight.Len(),
		Devices:   s.registry.Snapshot(),
	}
}

func toSubmissionError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &SubmissionError{Message: err.Error()}
	}
	fe := verrs[0]
	msg := "is invalid"
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "max":
		msg = "exceeds " + fe.Param() + " characters"
	}
	return &SubmissionError{Field: fe.Field(), Message: msg}
}
