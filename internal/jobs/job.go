package jobs

import (
	"context"
	"time"
)

type JobFunc func(ctx context.Context) error

// Job is a named unit of scheduled work with an optional per-run timeout.
type Job struct {
	name    string
	run     JobFunc
	timeout time.Duration
}

func NewJob(name string, run JobFunc, timeout time.Duration) Job {
	return Job{name: name, run: run, timeout: timeout}
}

func (j Job) Name() string { return j.name }

func (j Job) Run(ctx context.Context) error {
	return j.run(ctx)
}
