package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-upgrade-agent/internal/events"
)

// ErrQueueFull is returned by a queued handler when no slot is free.
var ErrQueueFull = errors.New("event queue full")

// ErrQueueClosed is returned by a queued handler after Shutdown.
var ErrQueueClosed = errors.New("event queue closed")

type job struct {
	ctx     context.Context
	event   events.Event
	handler events.EventHandler
}

// Queue runs event handlers on background workers so a slow collaborator
// never holds up the request that published the event.
type Queue struct {
	jobs    chan job
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts workers goroutines draining a buffer of size jobs. Each
// handler run is bounded by timeout.
func NewQueue(size, workers int, timeout time.Duration, logger *zap.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{jobs: make(chan job, size), timeout: timeout, logger: logger}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.run()
	}
	return q
}

// Wrap returns a handler that enqueues the event for h and returns at once.
// The request context is detached so its cancellation does not abort delivery.
func (q *Queue) Wrap(h events.EventHandler) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		q.mu.RLock()
		defer q.mu.RUnlock()
		if q.closed {
			return ErrQueueClosed
		}
		select {
		case q.jobs <- job{ctx: context.WithoutCancel(ctx), event: event, handler: h}:
			return nil
		default:
			q.logger.Warn("event dropped", zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
			return ErrQueueFull
		}
	}
}

// Shutdown stops accepting events and waits for queued ones to finish or ctx
// to end.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.handle(j)
	}
}

func (q *Queue) handle(j job) {
	ctx := j.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("event handler panicked", zap.String("event_id", j.event.ID), zap.Any("panic", r))
		}
	}()
	if err := j.handler(ctx, j.event); err != nil {
		q.logger.Warn("queued event handler failed",
			zap.String("event_id", j.event.ID),
			zap.String("type", string(j.event.Type)),
			zap.Error(err))
	}
}
