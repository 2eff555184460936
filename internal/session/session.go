// Package session serializes requests that belong to one conversation.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrBusy is returned when the session lock could not be taken in time.
var ErrBusy = errors.New("session busy")

// Locker grants at most one in-flight request per session id. Different
// sessions never block each other.
type Locker interface {
	Acquire(ctx context.Context, sessionID string) (release func(), err error)
}

const pollInterval = 25 * time.Millisecond

func waitContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
