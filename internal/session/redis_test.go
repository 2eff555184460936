package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server when TEST_REDIS_ADDR is set.
func TestRedisLocker_AcquireRelease(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	locker := NewRedisLocker(client, 5*time.Second, 50*time.Millisecond, nil)
	locker.prefix = "test:session:" + t.Name() + ":"

	release, err := locker.Acquire(ctx, "s1")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "s1")
	assert.ErrorIs(t, err, ErrBusy)

	release()
	again, err := locker.Acquire(ctx, "s1")
	require.NoError(t, err)
	again()
}
