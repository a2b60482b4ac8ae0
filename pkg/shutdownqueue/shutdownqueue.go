// Package shutdownqueue runs named cleanup tasks in LIFO order when the
// process stops.
//
// Build one queue in main, register tasks as resources come up, and drain
// it at the end:
//
//	sq := shutdownqueue.New(logger)
//	defer func() { retErr = errors.Join(retErr, sq.Shutdown(ctx)) }()
//	sq.Add("postgres", func(context.Context) error { return db.Close() })
//
// Tasks run once, in reverse order of registration. Panics are recovered.
// Shutdown is idempotent and returns an aggregated error via errors.Join.
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Task is a shutdown function. It should honor ctx and return an error
// if it can't finish (or ctx is canceled).
type Task func(ctx context.Context) error

type namedTask struct {
	name string
	run  Task
}

type Queue struct {
	logger *slog.Logger

	mu     sync.Mutex
	tasks  []namedTask
	closed bool
}

func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}

	return &Queue{
		logger: logger,
		tasks:  make([]namedTask, 0, 8),
	}
}

// Add registers a task under name. It is a no-op for a nil task or once
// Shutdown has started.
func (q *Queue) Add(name string, t Task) {
	if t == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn("shutdown task registered too late", "task", name)

		return
	}

	q.tasks = append(q.tasks, namedTask{name: name, run: t})
}

// Len reports how many tasks are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks)
}

// Shutdown drains all registered tasks in LIFO order. Calls after the
// first are no-ops.
//
// If ctx ends mid-drain, Shutdown stops before the next task and returns
// the context error joined with any task errors so far.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return nil
	}

	q.closed = true
	tasks := q.tasks
	q.tasks = nil

	q.mu.Unlock()

	var errs []error

	for i := len(tasks) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			q.logger.Warn("shutdown interrupted", "remaining", i+1, "error", ctx.Err())
			errs = append(errs, fmt.Errorf("shutdown canceled: %w", ctx.Err()))

			return errors.Join(errs...)
		default:
		}

		err := q.run(ctx, tasks[i])
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (q *Queue) run(ctx context.Context, t namedTask) (err error) {
	start := time.Now()

	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("panic in shutdown task %q: %v", t.name, r)
		}

		if err != nil {
			q.logger.Error("shutdown task failed", "task", t.name, "error", err)

			return
		}

		q.logger.Info("shutdown task done", "task", t.name, "took", time.Since(start).String())
	}()

	err = t.run(ctx)
	if err != nil {
		return fmt.Errorf("shutdown task %q: %w", t.name, err)
	}

	return nil
}
