package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-upgrade-agent/internal/dataprovider"
	"github.com/spec-kit/ticket-upgrade-agent/internal/toolcall"
)

// RetryPolicy bounds retries of transient tool failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy is three attempts with 100ms doubling backoff capped at 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}
}

// Backoff returns the wait before attempt n+1 after attempt n failed.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}

// retryingInvoker retries upstream_unavailable responses for read-only tools
// and for order creation carrying an idempotency key. Nothing else is repeated.
type retryingInvoker struct {
	next   toolcall.Invoker
	policy RetryPolicy
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

func newRetryingInvoker(next toolcall.Invoker, policy RetryPolicy, logger *zap.Logger) *retryingInvoker {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &retryingInvoker{next: next, policy: policy, logger: logger, sleep: sleepContext}
}

func (r *retryingInvoker) Invoke(ctx context.Context, req toolcall.Request) toolcall.Response {
	attempts := 1
	if retryable(req) {
		attempts = r.policy.MaxAttempts
	}

	var resp toolcall.Response
	for attempt := 1; ; attempt++ {
		resp = r.next.Invoke(ctx, req)
		if resp.Success || resp.Error == nil || resp.Error.Kind != toolcall.KindUpstreamUnavailable {
			return resp
		}
		if attempt >= attempts {
			break
		}
		wait := r.policy.Backoff(attempt)
		r.logger.Debug("retrying tool call",
			zap.String("tool", req.Tool), zap.Int("attempt", attempt), zap.Duration("backoff", wait))
		if err := r.sleep(ctx, wait); err != nil {
			break
		}
	}
	r.logger.Warn("tool call unavailable",
		zap.String("tool", req.Tool), zap.Int("attempts", attempts), zap.String("message", resp.Error.Message))
	return resp
}

func retryable(req toolcall.Request) bool {
	if req.Tool == toolcall.CreateUpgradeOrder {
		key, _ := req.Arguments["idempotency_key"].(string)
		return key != ""
	}
	spec, ok := dataprovider.Tool(req.Tool)
	return ok && spec.ReadOnly
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
