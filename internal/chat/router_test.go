package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-upgrade-agent/internal/dataprovider"
	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
	"github.com/spec-kit/ticket-upgrade-agent/internal/integration/payment"
	"github.com/spec-kit/ticket-upgrade-agent/internal/repository"
	"github.com/spec-kit/ticket-upgrade-agent/internal/service"
	"github.com/spec-kit/ticket-upgrade-agent/internal/toolcall"
	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
)

// Wednesday.
var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type approveAll struct{}

func (approveAll) Charge(_ context.Context, req payment.ChargeRequest) (payment.ChargeResult, error) {
	return payment.ChargeResult{Status: payment.StatusSucceeded, TransactionID: "txn-" + req.OrderID[:8]}, nil
}

// spy counts workflow calls on top of a real service.
type spy struct {
	Upgrader
	quotes, selects, confirms int
}

func (s *spy) Quote(ctx context.Context, req service.QuoteRequest) service.WorkflowResult {
	s.quotes++
	return s.Upgrader.Quote(ctx, req)
}

func (s *spy) Select(ctx context.Context, req service.SelectRequest) service.WorkflowResult {
	s.selects++
	return s.Upgrader.Select(ctx, req)
}

func (s *spy) Confirm(ctx context.Context, req service.ConfirmRequest) service.WorkflowResult {
	s.confirms++
	return s.Upgrader.Confirm(ctx, req)
}

func newRouter(t *testing.T) (*Router, *spy) {
	t.Helper()
	router, s, _ := newRouterWithStore(t)
	return router, s
}

func newRouterWithStore(t *testing.T) (*Router, *spy, *repository.MemoryStore) {
	t.Helper()
	mem := repository.NewMemoryStore()
	mem.SetClock(func() time.Time { return testNow })
	repository.SeedDemo(mem, testNow)
	provider := dataprovider.NewProvider(dataprovider.Dependencies{Store: mem.Store()})
	svc := service.NewUpgradeService(service.UpgradeDependencies{
		Invoker:  toolcall.NewLocalInvoker(provider, time.Second),
		Payments: approveAll{},
		Clock:    func() time.Time { return testNow },
	})
	s := &spy{Upgrader: svc}
	return NewRouter(RouterDependencies{Upgrades: s}), s, mem
}

func TestRouter_UpgradeRequestWithoutTicketAsksForIt(t *testing.T) {
	router, s := newRouter(t)

	for _, msg := range []string{"I want to upgrade", "show me the upgrade options", "how much is an upgrade?"} {
		resp := router.Handle(context.Background(), Request{Message: msg, Context: domain.ConversationContext{SessionID: "s1"}})

		assert.Equal(t, IntentUpgrade, resp.Intent, msg)
		assert.Equal(t, []Action{ActionRequestTicketID}, resp.Actions, msg)
		assert.NotContains(t, resp.Actions, ActionShowUpgradeOptions, msg)
		assert.Empty(t, resp.Options, msg)
	}
	assert.Zero(t, s.quotes)
}

func TestRouter_UnknownTicketGetsNotFoundReply(t *testing.T) {
	router, s := newRouter(t)

	resp := router.Handle(context.Background(), Request{Message: "ticket 333", Context: domain.ConversationContext{SessionID: "s1"}})

	assert.Equal(t, IntentTicket, resp.Intent)
	assert.Equal(t, 1, s.quotes)
	assert.Contains(t, resp.Reply, "couldn't find a ticket with the ID 333")
	assert.NotContains(t, resp.Reply, "Hello")
	assert.Equal(t, []Action{ActionRequestTicketID}, resp.Actions)
	assert.Empty(t, resp.UpdatedContext.TicketID)
}

func TestRouter_SeatUpgradeSelectsStandard(t *testing.T) {
	router, s := newRouter(t)
	conv := domain.ConversationContext{SessionID: "s1", TicketID: "5b0c8c1e-7f0e-4d43-9d7c-2d7f9c1a0101"}

	resp := router.Handle(context.Background(), Request{Message: "I'd like the Seat Upgrade", Context: conv})

	assert.Equal(t, IntentTierChoice, resp.Intent)
	assert.Equal(t, 1, s.selects)
	require.NotNil(t, resp.Order)
	assert.Equal(t, domain.TierStandard, resp.Order.RequestedTier)
	assert.Equal(t, domain.TierStandard, resp.UpdatedContext.SelectedTier)
	assert.Empty(t, conv.SelectedTier, "inbound context is not modified")
}

func TestRouter_TierSelectionFindsTicketInHistory(t *testing.T) {
	router, _ := newRouter(t)
	history := []domain.Message{
		{Role: domain.RoleUser, Text: "my ticket is TKT-20240101"},
		{Role: domain.RoleAssistant, Text: "Thanks! What would you like to do?"},
	}

	resp := router.Handle(context.Background(), Request{
		Message: "I'll take Non-Stop",
		History: history,
		Context: domain.ConversationContext{SessionID: "s1"},
	})

	assert.Equal(t, IntentTierChoice, resp.Intent)
	require.NotNil(t, resp.Order)
	assert.Equal(t, domain.MustMoney("100.00"), resp.Order.TotalAmount)
	assert.Equal(t, "5b0c8c1e-7f0e-4d43-9d7c-2d7f9c1a0101", resp.UpdatedContext.TicketID)
	assert.Equal(t, resp.Order.ID, resp.UpdatedContext.OrderID)
	assert.Equal(t, []Action{ActionConfirmUpgrade}, resp.Actions)
}

func TestRouter_TierSelectionWithoutAnyTicketReprompts(t *testing.T) {
	router, s := newRouter(t)

	resp := router.Handle(context.Background(), Request{Message: "I want Double Fun", Context: domain.ConversationContext{SessionID: "s1"}})

	assert.Equal(t, []Action{ActionRequestTicketID}, resp.Actions)
	assert.Equal(t, domain.TierDoubleFun, resp.UpdatedContext.SelectedTier)
	assert.Zero(t, s.selects)
}

func TestRouter_FullConversation(t *testing.T) {
	router, _ := newRouter(t)
	ctx := context.Background()
	conv := domain.ConversationContext{SessionID: "s-42", CustomerID: "8f2c0d4e-1b6a-4c3e-9a57-0c1d2e3f4a01"}
	var history []domain.Message
	say := func(msg string) Response {
		resp := router.Handle(ctx, Request{Message: msg, History: history, Context: conv})
		history = append(history, domain.Message{Role: domain.RoleUser, Text: msg}, domain.Message{Role: domain.RoleAssistant, Text: resp.Reply})
		conv = resp.UpdatedContext
		return resp
	}

	hello := say("hello")
	assert.Equal(t, IntentGreeting, hello.Intent)

	options := say("TKT-20240101")
	require.Equal(t, []Action{ActionShowUpgradeOptions}, options.Actions)
	require.Len(t, options.Options, 3)
	assert.Equal(t, domain.MustMoney("25.00"), options.Options[0].PriceDelta)
	assert.Equal(t, domain.MustMoney("75.00"), options.Options[0].Total)
	assert.Contains(t, options.Reply, "Standard Upgrade: +$25.00 (total $75.00)")
	assert.Equal(t, domain.Tiers(), conv.QuotedTiers)

	selected := say("Standard please")
	require.Equal(t, IntentTierChoice, selected.Intent)
	require.NotNil(t, selected.Order)
	assert.Equal(t, domain.OrderStatusPending, selected.Order.Status)
	assert.Contains(t, selected.Reply, "$75.00 in total")

	again := say("Standard please")
	assert.Equal(t, selected.Order.ID, again.Order.ID, "repeated selection replays the same order")

	confirmed := say("yes, confirm")
	assert.Equal(t, IntentConfirmation, confirmed.Intent)
	assert.Equal(t, []Action{ActionShowConfirmation}, confirmed.Actions)
	require.NotNil(t, confirmed.Order)
	assert.Equal(t, domain.OrderStatusCompleted, confirmed.Order.Status)
	assert.Regexp(t, `CONF[0-9A-F]{8}`, confirmed.Reply)
}

func TestRouter_OtherCustomersTicketIsNotFound(t *testing.T) {
	router, _ := newRouter(t)
	conv := domain.ConversationContext{SessionID: "s1", CustomerID: "8f2c0d4e-1b6a-4c3e-9a57-0c1d2e3f4a02"}

	resp := router.Handle(context.Background(), Request{Message: "TKT-20240101", Context: conv})

	assert.Contains(t, resp.Reply, "couldn't find a ticket")
	assert.Empty(t, resp.Options)
}

type fixedUpgrader struct{ result service.WorkflowResult }

func (f fixedUpgrader) Quote(context.Context, service.QuoteRequest) service.WorkflowResult { return f.result }
func (f fixedUpgrader) Select(context.Context, service.SelectRequest) service.WorkflowResult {
	return f.result
}
func (f fixedUpgrader) Confirm(context.Context, service.ConfirmRequest) service.WorkflowResult {
	return f.result
}

func TestRouter_FailuresAreExplainedNotGreeted(t *testing.T) {
	cases := []struct {
		err    *errorutil.DomainError
		action Action
	}{
		{errorutil.NewUpstreamUnavailable("store unavailable", nil), ActionRetryLater},
		{errorutil.NewInternalInconsistency("pricing invariant", nil), ActionContactSupport},
		{errorutil.NewPaymentDeclined("card declined"), ActionRetryPayment},
	}
	for _, tc := range cases {
		router := NewRouter(RouterDependencies{Upgrades: fixedUpgrader{service.WorkflowResult{State: service.StateFailed, Err: tc.err}}})
		conv := domain.ConversationContext{SessionID: "s1", TicketID: "t1", OrderID: "o1"}

		resp := router.Handle(context.Background(), Request{Message: "yes", Context: conv})

		assert.Equal(t, []Action{tc.action}, resp.Actions, tc.err.Code)
		assert.NotContains(t, resp.Reply, "Hello", tc.err.Code)
		assert.NotContains(t, resp.Reply, tc.err.Message+":", tc.err.Code)
	}
}

func TestRouter_ReselectionAfterFailedOrderPlacesNewOrder(t *testing.T) {
	router, _, mem := newRouterWithStore(t)
	ctx := context.Background()
	conv := domain.ConversationContext{SessionID: "s1"}

	resp := router.Handle(ctx, Request{Message: "ticket TKT-20240101", Context: conv})
	resp = router.Handle(ctx, Request{Message: "I want Standard", Context: resp.UpdatedContext})
	require.NotNil(t, resp.Order)
	failed := resp.Order
	reason := "payment provider rejected the card"
	_, err := mem.Store().Orders.Transition(ctx, domain.OrderTransition{
		OrderID: failed.ID, To: domain.OrderStatusFailed, Reason: &reason,
	})
	require.NoError(t, err)

	resp = router.Handle(ctx, Request{Message: "I want Standard", Context: resp.UpdatedContext})

	require.NotNil(t, resp.Order)
	assert.NotEqual(t, failed.ID, resp.Order.ID)
	assert.Equal(t, domain.OrderStatusPending, resp.Order.Status)
	assert.Equal(t, []Action{ActionConfirmUpgrade}, resp.Actions)
	assert.Contains(t, resp.Reply, "reserved")
	assert.Equal(t, resp.Order.ID, resp.UpdatedContext.OrderID)
	assert.True(t, strings.HasSuffix(resp.UpdatedContext.IdempotencyKey, ":"+failed.ID))

	// the renewed key sticks for the rest of the session
	again := router.Handle(ctx, Request{Message: "I want Standard", Context: resp.UpdatedContext})
	require.NotNil(t, again.Order)
	assert.Equal(t, resp.Order.ID, again.Order.ID)
}
