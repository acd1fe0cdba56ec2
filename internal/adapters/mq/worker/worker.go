// Package worker executes queued sync runs one at a time.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/kpisync/internal/adapters/mq/queue"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/pkg/logger"
	"github.com/okian/kpisync/pkg/metrics"
)

const defaultRunTimeout = 30 * time.Minute

// Runner executes one sync run.
type Runner interface {
	Run(ctx context.Context, req model.RunRequest) (model.Result, error)
}

// Queue is the consuming side of a job queue.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker consumes jobs until stopped.
type Worker interface {
	// Run blocks until ctx is cancelled, Shutdown is called or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after the current job and waits for it.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker runs jobs one at a time.
type InMemoryWorker struct {
	queue      Queue
	runner     Runner
	name       string
	runTimeout time.Duration

	busy      atomic.Bool
	processed atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from q.
func NewInMemoryWorker(q Queue, runner Runner, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		runner:     runner,
		name:       "worker",
		runTimeout: defaultRunTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run implements Worker.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown implements Worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Busy reports whether a run is in progress.
func (w *InMemoryWorker) Busy() bool { return w.busy.Load() }

// Processed returns the number of jobs run so far.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) {
	w.busy.Store(true)
	defer w.busy.Store(false)

	runCtx := ctx
	if w.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.runTimeout)
		defer cancel()
	}

	w.logger.Info(ctx, "run started",
		logger.String("job", job.ID),
		logger.String("trigger", string(job.Request.Trigger)),
		logger.String("waited", time.Since(job.Enqueued).String()))

	res, err := w.safeRun(runCtx, job.Request)
	w.processed.Add(1)
	if err != nil {
		metrics.RecordErrorByComponent("worker", "run_failed")
		w.logger.Error(ctx, "run failed", logger.String("job", job.ID), logger.Error(err))
	}
	if job.Reply != nil {
		job.Reply <- queue.Outcome{Result: res, Err: err}
	}
}

// safeRun converts a panic inside a run into an error result.
func (w *InMemoryWorker) safeRun(ctx context.Context, req model.RunRequest) (res model.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByType("panic", "critical")
			err = fmt.Errorf("run panicked: %v", r)
			res = model.Result{Status: model.StatusError, Error: err.Error()}
		}
	}()
	return w.runner.Run(ctx, req)
}
