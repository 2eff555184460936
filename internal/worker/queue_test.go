package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-upgrade-agent/internal/events"
	"github.com/spec-kit/ticket-upgrade-agent/internal/integration/notification"
	"github.com/spec-kit/ticket-upgrade-agent/internal/service"
)

// slowNotifier blocks every send until release is closed.
type slowNotifier struct {
	started chan struct{}
	release chan struct{}
	sent    atomic.Int32
	ctxErr  atomic.Value
}

func newSlowNotifier() *slowNotifier {
	return &slowNotifier{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (n *slowNotifier) Send(ctx context.Context, _ notification.Message) error {
	n.started <- struct{}{}
	<-n.release
	if err := ctx.Err(); err != nil {
		n.ctxErr.Store(err)
	}
	n.sent.Add(1)
	return nil
}

func (n *slowNotifier) Close() error { return nil }

func TestNotificationWorker_PublishDoesNotWaitForDelivery(t *testing.T) {
	notifier := newSlowNotifier()
	dispatcher := events.NewInMemoryDispatcher()
	queue := NewQueue(8, 1, time.Second, zap.NewNop())
	StartNotificationWorker(service.NewNotificationService(dispatcher, notifier, zap.NewNop(), nil), queue)

	ctx, cancel := context.WithCancel(context.Background())
	returned := make(chan error, 1)
	go func() {
		returned <- dispatcher.Publish(ctx, events.Event{ID: "e1", Type: events.EventUpgradeOrderCreated, OrderID: "o1"})
	}()

	select {
	case err := <-returned:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish blocked on the notifier")
	}
	// the request ends before delivery does
	cancel()

	<-notifier.started
	assert.Zero(t, notifier.sent.Load())
	close(notifier.release)

	require.NoError(t, queue.Shutdown(context.Background()))
	assert.Equal(t, int32(1), notifier.sent.Load())
	assert.Nil(t, notifier.ctxErr.Load(), "delivery context is detached from the request")
}

func TestQueue_FullAndClosed(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	blocking := func(context.Context, events.Event) error {
		started <- struct{}{}
		<-release
		return nil
	}
	queue := NewQueue(1, 1, 0, zap.NewNop())
	h := queue.Wrap(blocking)

	require.NoError(t, h(context.Background(), events.Event{ID: "running"}))
	<-started
	require.NoError(t, h(context.Background(), events.Event{ID: "buffered"}))
	assert.ErrorIs(t, h(context.Background(), events.Event{ID: "dropped"}), ErrQueueFull)

	close(release)
	require.NoError(t, queue.Shutdown(context.Background()))
	assert.ErrorIs(t, h(context.Background(), events.Event{ID: "late"}), ErrQueueClosed)
}

func TestQueue_ShutdownHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	queue := NewQueue(1, 1, 0, zap.NewNop())
	require.NoError(t, queue.Wrap(func(context.Context, events.Event) error {
		<-release
		return nil
	})(context.Background(), events.Event{ID: "stuck"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, queue.Shutdown(ctx), context.DeadlineExceeded)
}
