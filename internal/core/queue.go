package core

import (
	"sync"
)

// Predicate selects jobs during a scan of the queue.
type Predicate func(*Job) bool

// Queue is an ordered, mutex-guarded sequence of jobs. Every operation holds
// the lock for its full duration, so no caller ever observes a partially
// mutated sequence and a record can only be removed once.
//
// Lookups scan the slice; device counts are small and this keeps FIFO order
// trivially correct. A per-board index is the upgrade path if that changes.
type Queue struct {
	name string

	mu     sync.Mutex
	jobs   []*Job
	lastID uint64
}

// NewQueue creates an empty queue. The name is used in errors and metrics.
func NewQueue(name string) *Queue {
	return &Queue{name: name, jobs: make([]*Job, 0)}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Enqueue appends job to the tail and returns its id. A job without an id gets
// the next one from the queue's counter, allocated under the same lock as the
// append so ids are strictly increasing in enqueue order.
func (q *Queue) Enqueue(job *Job) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job.ID == 0 {
		q.lastID++
		job.ID = q.lastID
	}
	q.jobs = append(q.jobs, job)
	return job.ID
}

// DequeueMatching removes and returns the first job satisfying pred, leaving
// the relative order of the others untouched.
func (q *Queue) DequeueMatching(pred Predicate) (*Job, bool) {
	return q.Claim(pred, nil)
}

// Claim is DequeueMatching with a hand-off: fn runs with the removed job while
// the queue lock is still held, so the job is never unowned in between.
func (q *Queue) Claim(pred Predicate, fn func(*Job)) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.jobs {
		if pred(job) {
			q.removeAt(i)
			if fn != nil {
				fn(job)
			}
			return job, true
		}
	}
	return nil, false
}

// DequeueByID removes and returns the job with the given id.
func (q *Queue) DequeueByID(id uint64) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(id)
	if i < 0 {
		return nil, false
	}
	job := q.jobs[i]
	q.removeAt(i)
	return job, true
}

// DeleteByID removes the job with the given id and reports whether it existed.
func (q *Queue) DeleteByID(id uint64) bool {
	_, ok := q.DequeueByID(id)
	return ok
}

// PositionOf returns the 1-based distance of id from the head. The value is
// only an estimate for clients since others may mutate the queue right after.
func (q *Queue) PositionOf(id uint64) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(id)
	if i < 0 {
		return 0, false
	}
	return i + 1, true
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Snapshot returns copies of the queued jobs in order.
func (q *Queue) Snapshot() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, len(q.jobs))
	for i, job := range q.jobs {
		out[i] = *job
	}
	return out
}

func (q *Queue) indexOf(id uint64) int {
	for i, job := range q.jobs {
		if job.ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) removeAt(i int) {
	copy(q.jobs[i:], q.jobs[i+1:])
	q.jobs[len(q.jobs)-1] = nil
	q.jobs = q.jobs[:len(q.jobs)-1]
}
