// Package jobs runs recurring background work on fixed intervals.
package jobs

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// Job is one recurring unit of work. Run receives a progress sink for
// human-readable reporting.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context, progress func(string)) error

	running atomic.Bool
}

type Scheduler struct {
	jobs []*Job
}

func NewScheduler(jobs ...*Job) *Scheduler {
	return &Scheduler{jobs: jobs}
}

// Start launches one goroutine per job and returns. Jobs stop when ctx
// is cancelled. A tick that arrives while the previous run is still
// going is skipped: the work is idempotent, so overlap would only waste
// effort.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		go s.loop(ctx, job)
	}
}

func (s *Scheduler) loop(ctx context.Context, job *Job) {
	ticker := time.NewTicker(job.Every)
	defer ticker.Stop()

	log.Printf("jobs: %s scheduled every %s", job.Name, job.Every)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !job.running.CompareAndSwap(false, true) {
				log.Printf("jobs: %s still running, skipping tick", job.Name)
				continue
			}
			s.run(ctx, job)
			job.running.Store(false)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("jobs: %s panicked: %v", job.Name, r)
		}
	}()

	progress := func(msg string) { log.Printf("jobs: %s: %s", job.Name, msg) }
	if err := job.Run(ctx, progress); err != nil {
		log.Printf("jobs: %s failed: %v", job.Name, err)
	}
}
