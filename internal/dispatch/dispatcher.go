// Package dispatch queues inbound relay triggers and runs them one at a
// time, giving each run its own deadline. It stands in for the queue-driven
// invocation model: one message, one relay run, run to completion before the
// next is considered.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/advicechat/relay/internal/relay"
)

// ErrQueueFull is returned when the trigger queue cannot accept more work.
var ErrQueueFull = errors.New("relay queue is full")

// ErrStopped is returned when the dispatcher is no longer accepting work.
var ErrStopped = errors.New("dispatcher stopped")

// Runner executes one relay run.
type Runner interface {
	Run(ctx context.Context, req *relay.Request) error
}

// Job is one queued trigger.
type Job struct {
	ID         string
	Request    relay.Request
	EnqueuedAt time.Time
}

// Dispatcher owns the trigger queue and its single worker. Relay runs for
// different sessions share no state, so serializing them here is purely a
// throughput decision that mirrors one-message-one-invocation semantics.
type Dispatcher struct {
	runner  Runner
	jobs    chan Job
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// New creates a dispatcher with a bounded queue.
func New(runner Runner, queueSize int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		runner:  runner,
		jobs:    make(chan Job, queueSize),
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Enqueue accepts one trigger and returns its job id. It never blocks: a
// full queue is reported to the caller instead.
func (d *Dispatcher) Enqueue(req relay.Request) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return "", ErrStopped
	}

	job := Job{
		ID:         uuid.New().String(),
		Request:    req,
		EnqueuedAt: time.Now(),
	}

	select {
	case d.jobs <- job:
		return job.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// Start launches the worker. The base context bounds the dispatcher's whole
// lifetime; each job additionally gets its own timeout.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.work(ctx)
}

func (d *Dispatcher) work(ctx context.Context) {
	defer close(d.done)

	for job := range d.jobs {
		jobCtx, cancel := context.WithTimeout(ctx, d.timeout)

		start := time.Now()
		err := d.runner.Run(jobCtx, &job.Request)
		cancel()

		if err != nil {
			d.logger.Error("relay job failed",
				slog.String("job_id", job.ID),
				slog.String("session_id", job.Request.RuntimeSessionID),
				slog.String("error", err.Error()),
				slog.Duration("duration", time.Since(start)),
			)
			continue
		}

		d.logger.Info("relay job complete",
			slog.String("job_id", job.ID),
			slog.String("session_id", job.Request.RuntimeSessionID),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// Shutdown stops accepting triggers and waits for queued work to drain,
// up to the context deadline.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.jobs)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
