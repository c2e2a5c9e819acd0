package core

// ForBoard is the scheduling policy used by dispatchers: take the oldest job
// for this board. Jobs for other boards are skipped, so a later job for one
// board can be served before an earlier job for another.
func ForBoard(boardID string) Predicate {
	return func(job *Job) bool {
		return job.TargetBoard == boardID
	}
}

