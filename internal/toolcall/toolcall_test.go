package toolcall_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-upgrade-agent/internal/toolcall"
	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

func TestLocalInvoker_TimeoutIsUpstreamUnavailable(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	slow := toolcall.InvokerFunc(func(ctx context.Context, req toolcall.Request) toolcall.Response {
		<-release
		close(finished)
		return toolcall.OK(map[string]string{"late": "true"})
	})
	inv := toolcall.NewLocalInvoker(handlerOf(slow), 20*time.Millisecond)

	resp := inv.Invoke(context.Background(), toolcall.Request{Tool: toolcall.GetCustomer})
	require.False(t, resp.Success)
	assert.Equal(t, toolcall.KindUpstreamUnavailable, resp.Error.Kind)

	// the handler still runs to completion after the caller gave up
	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("handler did not finish")
	}
}

func TestLocalInvoker_PassesThroughResult(t *testing.T) {
	inv := toolcall.NewLocalInvoker(handlerOf(func(ctx context.Context, req toolcall.Request) toolcall.Response {
		return toolcall.OK(req.Arguments)
	}), time.Second)

	resp := inv.Invoke(context.Background(), toolcall.Request{Tool: "x", Arguments: map[string]any{"a": "b"}})
	var out map[string]string
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "b", out["a"])
}

func TestError_DomainErrorMapping(t *testing.T) {
	cases := map[toolcall.ErrorKind]string{
		toolcall.KindValidation:          errorutil.CodeValidation,
		toolcall.KindNotFound:            errorutil.CodeNotFound,
		toolcall.KindConflict:            errorutil.CodeConflict,
		toolcall.KindUpstreamUnavailable: errorutil.CodeUpstreamUnavailable,
		toolcall.KindInternal:            errorutil.CodeInternalInconsistency,
		toolcall.KindUnknownTool:         errorutil.CodeValidation,
	}
	for kind, code := range cases {
		err := &toolcall.Error{Kind: kind, Message: "m"}
		assert.Equal(t, code, err.DomainError().Code, kind)
	}
	assert.Equal(t, toolcall.KindConflict, toolcall.FailFrom(errorutil.NewConflict("busy", nil)).Error.Kind)
}

func TestHTTPInvoker_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tools/invoke", r.URL.Path)
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		var req toolcall.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, toolcall.GetCustomer, req.Tool)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toolcall.Fail(toolcall.KindNotFound, "customer not found"))
	}))
	defer srv.Close()

	inv, err := toolcall.NewHTTPInvoker(toolcall.HTTPInvokerConfig{BaseURL: srv.URL, Tokens: staticToken("svc-token")})
	require.NoError(t, err)

	resp := inv.Invoke(context.Background(), toolcall.Request{Tool: toolcall.GetCustomer, Arguments: map[string]any{"customer_id": "c-1"}})
	require.False(t, resp.Success)
	assert.Equal(t, toolcall.KindNotFound, resp.Error.Kind)
}

func TestHTTPInvoker_ServerErrorsAreTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	inv, err := toolcall.NewHTTPInvoker(toolcall.HTTPInvokerConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	resp := inv.Invoke(context.Background(), toolcall.Request{Tool: toolcall.GetTicket})
	assert.Equal(t, toolcall.KindUpstreamUnavailable, resp.Error.Kind)

	srv.Close()
	resp = inv.Invoke(context.Background(), toolcall.Request{Tool: toolcall.GetTicket})
	assert.Equal(t, toolcall.KindUpstreamUnavailable, resp.Error.Kind)
}

type handlerOf toolcall.InvokerFunc

func (h handlerOf) Handle(ctx context.Context, req toolcall.Request) toolcall.Response {
	return h(ctx, req)
}
