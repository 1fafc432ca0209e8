package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/metrics"
)

// Task is the background part of a job
type Task func(ctx context.Context, job *Job) (Summary, string, error)

// Runner starts jobs, holding the owner's lock from Begin until the job finishes, and
// runs their background tasks with bounded concurrency.
type Runner struct {
	ctx      context.Context
	registry *Registry
	lock     OwnerLock
	sem      chan struct{}
	wg       sync.WaitGroup
	log      logrus.FieldLogger
}

// NewRunner creates a runner whose tasks receive ctx. Cancelling ctx is how background
// tasks learn about shutdown.
func NewRunner(ctx context.Context, registry *Registry, lock OwnerLock, maxConcurrent int, log logrus.FieldLogger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Runner{
		ctx:      ctx,
		registry: registry,
		lock:     lock,
		sem:      make(chan struct{}, maxConcurrent),
		log:      log,
	}
}

func (r *Runner) Registry() *Registry {
	return r.registry
}

// Lock is the owner lock jobs are started under
func (r *Runner) Lock() OwnerLock {
	return r.lock
}

// Job is a started job. The caller finishes it with Complete or Fail, or hands it to
// Go to finish in the background.
type Job struct {
	ID      string
	OwnerID string
	Kind    Kind

	runner  *Runner
	release ReleaseFunc
	started time.Time
	once    sync.Once
}

// Begin takes the owner's lock and registers a new job. Returns ErrJobActive when the
// owner already has one running.
func (r *Runner) Begin(ctx context.Context, ownerID string, kind Kind) (*Job, error) {
	release, err := r.lock.Acquire(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ErrJobActive) {
			metrics.JobsRejectedTotal.Inc()
		}
		return nil, err
	}

	state := r.registry.Begin(ownerID, kind)
	r.log.Infof("Jobs: started %s job %s for %s", kind, state.JobID, ownerID)
	return &Job{
		ID:      state.JobID,
		OwnerID: ownerID,
		Kind:    kind,
		runner:  r,
		release: release,
		started: time.Now(),
	}, nil
}

func (j *Job) SetPhase(phase Phase, total int, message string) {
	j.runner.registry.SetPhase(j.OwnerID, j.ID, phase, total, message)
}

func (j *Job) Tick(current int, cardName string) {
	j.runner.registry.Tick(j.OwnerID, j.ID, current, cardName)
}

func (j *Job) Complete(summary Summary, message string) {
	j.finish(func() {
		j.runner.registry.Complete(j.OwnerID, j.ID, summary, message)
		j.runner.log.Infof("Jobs: %s job %s for %s complete: %s", j.Kind, j.ID, j.OwnerID, message)
	}, "success")
}

func (j *Job) Fail(err error) {
	j.finish(func() {
		j.runner.registry.Fail(j.OwnerID, j.ID, err)
		j.runner.log.Errorf("Jobs: %s job %s for %s failed: %v", j.Kind, j.ID, j.OwnerID, err)
	}, "error")
}

func (j *Job) finish(record func(), result string) {
	j.once.Do(func() {
		record()
		metrics.JobDuration.WithLabelValues(string(j.Kind), result).Observe(time.Since(j.started).Seconds())
		j.release()
	})
}

// Go runs task in the background and finishes the job with its outcome. A panic in
// task fails the job.
func (j *Job) Go(task Task) {
	r := j.runner
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		select {
		case r.sem <- struct{}{}:
		case <-r.ctx.Done():
			j.Fail(fmt.Errorf("server shutting down: %w", r.ctx.Err()))
			return
		}
		defer func() { <-r.sem }()

		metrics.JobsActive.Inc()
		defer metrics.JobsActive.Dec()

		defer func() {
			if p := recover(); p != nil {
				j.Fail(fmt.Errorf("job panicked: %v", p))
			}
		}()

		summary, message, err := task(r.ctx, j)
		if err != nil {
			j.Fail(err)
			return
		}
		j.Complete(summary, message)
	}()
}

// Wait blocks until every background task started so far has returned
func (r *Runner) Wait() {
	r.wg.Wait()
}
