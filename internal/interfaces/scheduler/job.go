package scheduler

import "context"

// Job is a unit of work run by the worker pool.
type Job interface {
	// Execute runs the job. Implementations must respect ctx cancellation.
	Execute(ctx context.Context) error

	// CompanyID returns the company the job works for, or "" for global jobs.
	// The pool never queues two jobs for the same company at once.
	CompanyID() string

	Description() string
}

// JobProvider builds the jobs for one scheduling round.
type JobProvider func(ctx context.Context) ([]Job, error)
