package toolcall

import (
	"context"
	"time"
)

// Handler executes tool requests. The data provider implements it.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

// LocalInvoker calls an in-process Handler with the same timeout semantics
// as the remote transport. A handler that outlives the timeout keeps running
// to completion and its result is discarded.
type LocalInvoker struct {
	handler Handler
	timeout time.Duration
}

func NewLocalInvoker(handler Handler, timeout time.Duration) *LocalInvoker {
	return &LocalInvoker{handler: handler, timeout: timeout}
}

func (l *LocalInvoker) Invoke(ctx context.Context, req Request) Response {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	done := make(chan Response, 1)
	go func() {
		// detached so an in-flight store call is not torn down mid-statement
		done <- l.handler.Handle(context.WithoutCancel(ctx), req)
	}()

	select {
	case resp := <-done:
		return resp
	case <-ctx.Done():
		return Fail(KindUpstreamUnavailable, "tool "+req.Tool+" did not respond: "+ctx.Err().Error())
	}
}
