package core

import (
	"fmt"
)

// SubmissionError is returned when a submission is malformed.
type SubmissionError struct {
	Field   string
	Message string
}

func (err *SubmissionError) Error() string {
	if err.Field == "" {
		return fmt.Sprintf("invalid submission: %s", err.Message)
	}
	return fmt.Sprintf("invalid submission: field %q %s", err.Field, err.Message)
}

// NotFoundError is returned when a job id is unknown to the queried queue(s).
type NotFoundError struct {
	ID uint64
	// Where names the queue that was searched, e.g. "pending".
	Where string
}

func (err *NotFoundError) Error() string {
	if err.Where != "" {
		return fmt.Sprintf("job %d not found in %s queue", err.ID, err.Where)
	}
	return fmt.Sprintf("job %d not found", err.ID)
}

// DispatchError describes a failed remote execution: a network error, a
// timeout or a non-success response from the device agent.
type DispatchError struct {
	Device     string
	Endpoint   string
	StatusCode int
	Err        error
}

func (err *DispatchError) Error() string {
	s := fmt.Sprintf("dispatch to device %s (%s) failed", err.Device, err.Endpoint)
	if err.StatusCode != 0 {
		s += fmt.Sprintf(": status %d", err.StatusCode)
	}
	if err.Err != nil {
		s += ": " + err.Err.Error()
	}
	return s
}

func (err *DispatchError) Unwrap() error { return err.Err }

// PersistenceError wraps a failure to store a job result.
type PersistenceError struct {
	JobID uint64
	Err   error
}

func (err *PersistenceError) Error() string {
	return fmt.Sprintf("persist result of job %d: %v", err.JobID, err.Err)
}

func (err *PersistenceError) Unwrap() error { return err.Err }

// NotificationError wraps a failure to notify a submitter.
type NotificationError struct {
	JobID       uint64
	Destination string
	Err         error
}

func (err *NotificationError) Error() string {
	return fmt.Sprintf("notify %q about job %d: %v", err.Destination, err.JobID, err.Err)
}

func (err *NotificationError) Unwrap() error { return err.Err }
