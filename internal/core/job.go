package core

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "Queued"
	StatusDispatched Status = "Dispatched"
	StatusCompleted  Status = "Completed"
	StatusError      Status = "Error"
)

func (s Status) String() string { return string(s) }

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ValidateTransition returns an error if moving from s to target would skip a
// state or leave a terminal state.
func (s Status) ValidateTransition(target Status) error {
	ok := false
	switch s {
	case StatusQueued:
		ok = target == StatusDispatched
	case StatusDispatched:
		ok = target == StatusCompleted || target == StatusError
	}
	if !ok {
		return fmt.Errorf("invalid job status transition from %s to %s", s, target)
	}
	return nil
}

// Job is a unit of work: an assembly program to run on a board class.
type Job struct {
	ID          uint64 `json:"request_id"`
	TargetBoard string `json:"target_board"`
	// Payload is the assembly text; it is never modified after submission.
	Payload string `json:"asm_code"`
	// ResultDestination is opaque to the core and only used by the notifier.
	ResultDestination string `json:"result_email"`

	Status Status `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	// Device is the name of the device that served the job.
	Device string `json:"device,omitempty"`

	SubmittedAt  time.Time `json:"submitted_at"`
	DispatchedAt time.Time `json:"dispatched_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// NewJob builds a queued job without an id; the pending queue assigns one.
func NewJob(targetBoard, payload, resultDestination string) *Job {
	return &Job{
		TargetBoard:       targetBoard,
		Payload:           payload,
		ResultDestination: resultDestination,
		Status:            StatusQueued,
		SubmittedAt:       time.Now().UTC(),
	}
}

// transition moves the job to target, panicking on an illegal move. Only the
// dispatcher that owns the job calls it, so an illegal move is a programming error.
func (j *Job) transition(target Status) {
	if err := j.Status.ValidateTransition(target); err != nil {
		panic(err)
	}
	j.Status = target
}

// markDispatched records that device took ownership of the job.
func (j *Job) markDispatched(device string) {
	j.transition(StatusDispatched)
	j.Device = device
	j.DispatchedAt = time.Now().UTC()
}

// complete attaches the remote output.
func (j *Job) complete(result string) {
	j.transition(StatusCompleted)
	j.Result = result
	j.FinishedAt = time.Now().UTC()
}

// fail records a dispatch failure. The error text doubles as the result payload
// so that the submitter always gets something back.
func (j *Job) fail(err error) {
	j.transition(StatusError)
	j.Error = err.Error()
	j.Result = err.Error()
	j.FinishedAt = time.Now().UTC()
}
