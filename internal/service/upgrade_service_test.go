package service

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-upgrade-agent/internal/dataprovider"
	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
	"github.com/spec-kit/ticket-upgrade-agent/internal/events"
	"github.com/spec-kit/ticket-upgrade-agent/internal/integration/payment"
	"github.com/spec-kit/ticket-upgrade-agent/internal/pricing"
	"github.com/spec-kit/ticket-upgrade-agent/internal/repository"
	"github.com/spec-kit/ticket-upgrade-agent/internal/toolcall"
	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
)

const (
	johnID        = "8f2c0d4e-1b6a-4c3e-9a57-0c1d2e3f4a01"
	janeID        = "8f2c0d4e-1b6a-4c3e-9a57-0c1d2e3f4a02"
	generalTicket = "5b0c8c1e-7f0e-4d43-9d7c-2d7f9c1a0101"
)

// Wednesday.
var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu      sync.Mutex
	status  payment.Status
	err     error
	charges []payment.ChargeRequest
}

func (g *fakeGateway) Charge(_ context.Context, req payment.ChargeRequest) (payment.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, req)
	if g.err != nil {
		return payment.ChargeResult{}, g.err
	}
	return payment.ChargeResult{Status: g.status, TransactionID: "txn-1", Message: ""}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	svc      *UpgradeService
	mem      *repository.MemoryStore
	gateway  *fakeGateway
	recorded *recorder
	calls    sync.Map
}

// newHarness wires the service to a seeded memory store. wrap may intercept
// tool calls before they reach the provider.
func newHarness(t *testing.T, wrap func(toolcall.Invoker) toolcall.Invoker) *harness {
	t.Helper()
	mem := repository.NewMemoryStore()
	mem.SetClock(func() time.Time { return testNow })
	repository.SeedDemo(mem, testNow)

	h := &harness{mem: mem, gateway: &fakeGateway{status: payment.StatusSucceeded}, recorded: &recorder{}}
	provider := dataprovider.NewProvider(dataprovider.Dependencies{Store: mem.Store()})
	var invoker toolcall.Invoker = toolcall.NewLocalInvoker(provider, time.Second)
	counted := invoker
	invoker = toolcall.InvokerFunc(func(ctx context.Context, req toolcall.Request) toolcall.Response {
		n, _ := h.calls.LoadOrStore(req.Tool, new(atomic.Int32))
		n.(*atomic.Int32).Add(1)
		return counted.Invoke(ctx, req)
	})
	if wrap != nil {
		invoker = wrap(invoker)
	}

	dispatcher := events.NewInMemoryDispatcher()
	for _, typ := range []events.EventType{events.EventUpgradeOrderCreated, events.EventUpgradeOrderCompleted, events.EventUpgradePaymentFailed} {
		dispatcher.Subscribe(typ, h.recorded.handle)
	}
	h.svc = NewUpgradeService(UpgradeDependencies{
		Invoker:    invoker,
		Engine:     pricing.NewEngine(pricing.DefaultConfig()),
		Payments:   h.gateway,
		Dispatcher: dispatcher,
		Retry:      RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
		Clock:      func() time.Time { return testNow },
	})
	return h
}

func (h *harness) callCount(tool string) int32 {
	n, ok := h.calls.Load(tool)
	if !ok {
		return 0
	}
	return n.(*atomic.Int32).Load()
}

func TestSelect_CreatesPendingOrderAtQuotedTotal(t *testing.T) {
	h := newHarness(t, nil)

	res := h.svc.Select(context.Background(), SelectRequest{
		TicketRef: generalTicket, CustomerID: johnID, Choice: "Standard",
	})

	require.Nil(t, res.Err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, []WorkflowState{
		StateStart, StateValidating, StatePricing, StateRecommending,
		StateAwaitingSelection, StateCreating, StateCompleted,
	}, res.Trail)
	require.NotNil(t, res.Order)
	assert.Equal(t, domain.MustMoney("75.00"), res.Order.TotalAmount)
	assert.Equal(t, domain.MustMoney("25.00"), res.Order.PriceDelta)
	assert.Equal(t, domain.OrderStatusPending, res.Order.Status)
	assert.Equal(t, []events.EventType{events.EventUpgradeOrderCreated}, h.recorded.types())
}

func TestQuote_ReturnsThreeTiersInCatalogOrder(t *testing.T) {
	h := newHarness(t, nil)

	res := h.svc.Quote(context.Background(), QuoteRequest{TicketRef: "TKT-20240101", CustomerID: johnID})

	require.Equal(t, StateAwaitingSelection, res.State)
	require.Len(t, res.Quotes, 3)
	assert.Equal(t, domain.Tiers(), []domain.Tier{res.Quotes[0].Info.Tier, res.Quotes[1].Info.Tier, res.Quotes[2].Info.Tier})
	assert.Equal(t, "John", res.Customer.FirstName)
	assert.Nil(t, res.Recommendation)
}

func TestQuote_RecommendsWithinBudget(t *testing.T) {
	h := newHarness(t, nil)
	budget := domain.MustMoney("60.00")

	res := h.svc.Quote(context.Background(), QuoteRequest{
		TicketRef: generalTicket, Preferences: Preferences{BudgetCeiling: &budget},
	})

	require.NotNil(t, res.Recommendation)
	assert.Equal(t, domain.TierNonStop, res.Recommendation.Tier)
}

func TestQuote_UnknownTicketIsRejectedWithoutData(t *testing.T) {
	h := newHarness(t, nil)

	res := h.svc.Quote(context.Background(), QuoteRequest{TicketRef: "333"})

	assert.Equal(t, StateRejected, res.State)
	require.NotNil(t, res.Err)
	assert.Equal(t, errorutil.CodeNotFound, res.Err.Code)
	assert.Nil(t, res.Ticket)
	assert.Empty(t, res.Quotes)
}

func TestQuote_TicketOfAnotherCustomerIsRejected(t *testing.T) {
	h := newHarness(t, nil)

	res := h.svc.Quote(context.Background(), QuoteRequest{TicketRef: generalTicket, CustomerID: janeID})

	assert.Equal(t, StateRejected, res.State)
	assert.Equal(t, errorutil.CodeNotFound, res.Err.Code)
	assert.Nil(t, res.Ticket)
}

func TestQuote_RetriesTransientReads(t *testing.T) {
	var failures atomic.Int32
	h := newHarness(t, func(next toolcall.Invoker) toolcall.Invoker {
		return toolcall.InvokerFunc(func(ctx context.Context, req toolcall.Request) toolcall.Response {
			if req.Tool == toolcall.GetTicket && failures.Add(1) <= 2 {
				return toolcall.Fail(toolcall.KindUpstreamUnavailable, "store unavailable")
			}
			return next.Invoke(ctx, req)
		})
	})

	res := h.svc.Quote(context.Background(), QuoteRequest{TicketRef: generalTicket})

	assert.Equal(t, StateAwaitingSelection, res.State)
	assert.Equal(t, int32(1), h.callCount(toolcall.GetTicket))
	assert.Equal(t, int32(3), failures.Load())
}

func TestQuote_PersistentOutageFailsRetryable(t *testing.T) {
	h := newHarness(t, func(next toolcall.Invoker) toolcall.Invoker {
		return toolcall.InvokerFunc(func(ctx context.Context, req toolcall.Request) toolcall.Response {
			if req.Tool == toolcall.GetTicket {
				return toolcall.Fail(toolcall.KindUpstreamUnavailable, "store unavailable")
			}
			return next.Invoke(ctx, req)
		})
	})

	res := h.svc.Quote(context.Background(), QuoteRequest{TicketRef: generalTicket})

	assert.Equal(t, StateFailed, res.State)
	assert.True(t, res.Retryable)
	assert.Equal(t, errorutil.CodeUpstreamUnavailable, res.Err.Code)
}

func TestSelect_CreateIsRetriedOnlyWithIdempotencyKey(t *testing.T) {
	var creates atomic.Int32
	h := newHarness(t, func(next toolcall.Invoker) toolcall.Invoker {
		return toolcall.InvokerFunc(func(ctx context.Context, req toolcall.Request) toolcall.Response {
			if req.Tool == toolcall.CreateUpgradeOrder {
				creates.Add(1)
				return toolcall.Fail(toolcall.KindUpstreamUnavailable, "store unavailable")
			}
			return next.Invoke(ctx, req)
		})
	})

	res := h.svc.Select(context.Background(), SelectRequest{TicketRef: generalTicket, Choice: "standard"})
	assert.Equal(t, StateFailed, res.State)
	assert.True(t, res.Retryable)
	assert.Equal(t, int32(1), creates.Load())

	creates.Store(0)
	res = h.svc.Select(context.Background(), SelectRequest{TicketRef: generalTicket, Choice: "standard", IdempotencyKey: "k-1"})
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, int32(3), creates.Load())
}

func TestSelect_SameKeyReplaysOrder(t *testing.T) {
	h := newHarness(t, nil)
	req := SelectRequest{TicketRef: generalTicket, Choice: "Non-Stop", IdempotencyKey: "sess-1:non-stop"}

	first := h.svc.Select(context.Background(), req)
	second := h.svc.Select(context.Background(), req)

	require.Equal(t, StateCompleted, first.State)
	require.Equal(t, StateCompleted, second.State)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Len(t, h.recorded.types(), 1)
}

func TestSelect_KeyOfFailedOrderIsNotReportedAsSuccess(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	req := SelectRequest{TicketRef: generalTicket, Choice: "Standard", IdempotencyKey: "sess-1:standard"}

	first := h.svc.Select(ctx, req)
	require.Equal(t, StateCompleted, first.State)
	reason := "card expired"
	_, err := h.mem.Store().Orders.Transition(ctx, domain.OrderTransition{
		OrderID: first.Order.ID, To: domain.OrderStatusFailed, Reason: &reason,
	})
	require.NoError(t, err)

	again := h.svc.Select(ctx, req)

	assert.Equal(t, StateRejected, again.State)
	require.NotNil(t, again.Err)
	assert.Equal(t, errorutil.CodeIneligible, again.Err.Code)
	assert.Equal(t, RuleOrderFailed, again.Err.Details["rule"])
	assert.True(t, again.Replayed)
	assert.Equal(t, domain.OrderStatusFailed, again.Order.Status)
	assert.Len(t, h.recorded.types(), 1, "no event for the replay")

	req.IdempotencyKey = "sess-1:standard:" + first.Order.ID
	fresh := h.svc.Select(ctx, req)
	require.Equal(t, StateCompleted, fresh.State)
	assert.False(t, fresh.Replayed)
	assert.NotEqual(t, first.Order.ID, fresh.Order.ID)
	assert.Equal(t, domain.OrderStatusPending, fresh.Order.Status)
}

func TestSelect_OpenOrderBlocksSecondUpgrade(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, StateCompleted, h.svc.Select(context.Background(), SelectRequest{TicketRef: generalTicket, Choice: "Standard"}).State)

	res := h.svc.Select(context.Background(), SelectRequest{TicketRef: generalTicket, Choice: "Double Fun"})

	assert.Equal(t, StateRejected, res.State)
	assert.Equal(t, MsgUpgradeInProgress, res.Err.Message)
}

func TestSelect_RaceLoserGetsConflictMessage(t *testing.T) {
	h := newHarness(t, func(next toolcall.Invoker) toolcall.Invoker {
		// hide the open order so both selections reach creation
		return toolcall.InvokerFunc(func(ctx context.Context, req toolcall.Request) toolcall.Response {
			if req.Tool == toolcall.FindOpenOrder {
				return toolcall.Fail(toolcall.KindNotFound, "no open order")
			}
			return next.Invoke(ctx, req)
		})
	})
	require.Equal(t, StateCompleted, h.svc.Select(context.Background(), SelectRequest{TicketRef: generalTicket, Choice: "Standard"}).State)

	res := h.svc.Select(context.Background(), SelectRequest{TicketRef: generalTicket, Choice: "Non-Stop"})

	assert.Equal(t, StateRejected, res.State)
	assert.Equal(t, errorutil.CodeConflict, res.Err.Code)
	assert.Equal(t, MsgUpgradeInProgress, res.Err.Message)
}

func TestSelect_UnmatchedChoiceIsRejectedWithGuidance(t *testing.T) {
	h := newHarness(t, nil)

	res := h.svc.Select(context.Background(), SelectRequest{TicketRef: generalTicket, Choice: "Platinum"})

	assert.Equal(t, StateRejected, res.State)
	assert.Equal(t, errorutil.CodeValidation, res.Err.Code)
	assert.Contains(t, res.Err.Message, "Standard, Non-Stop, Double Fun")
	assert.Zero(t, h.callCount(toolcall.CreateUpgradeOrder))
}

func TestSelect_ChoiceOutsideQuotedTiersIsRejected(t *testing.T) {
	h := newHarness(t, nil)

	res := h.svc.Select(context.Background(), SelectRequest{
		TicketRef: generalTicket, Choice: "Double Fun", QuotedTiers: []domain.Tier{domain.TierStandard},
	})

	assert.Equal(t, StateRejected, res.State)
	assert.Equal(t, errorutil.CodeValidation, res.Err.Code)
}

func TestSelect_IneligibleTierIsRejectedWithRule(t *testing.T) {
	h := newHarness(t, nil)
	vipTicket := "5b0c8c1e-7f0e-4d43-9d7c-2d7f9c1a0102"

	res := h.svc.Select(context.Background(), SelectRequest{
		TicketRef: vipTicket, Choice: "Standard", QuotedTiers: domain.Tiers(),
	})

	assert.Equal(t, StateRejected, res.State)
	assert.Equal(t, errorutil.CodeIneligible, res.Err.Code)
	assert.Equal(t, string(pricing.RuleUpgradePath), res.Err.Details["rule"])
}

func TestConfirm_CompletesOrderWithConfirmationCode(t *testing.T) {
	h := newHarness(t, nil)
	selected := h.svc.Select(context.Background(), SelectRequest{TicketRef: generalTicket, Choice: "Standard"})
	require.Equal(t, StateCompleted, selected.State)

	res := h.svc.Confirm(context.Background(), ConfirmRequest{OrderID: selected.Order.ID, CustomerID: johnID})

	require.Nil(t, res.Err)
	assert.Equal(t, []WorkflowState{StateStart, StateConfirming, StateCompleted}, res.Trail)
	assert.Equal(t, domain.OrderStatusCompleted, res.Order.Status)
	require.NotNil(t, res.Order.ConfirmationCode)
	assert.Regexp(t, regexp.MustCompile(`^CONF[0-9A-F]{8}$`), *res.Order.ConfirmationCode)
	assert.Equal(t, domain.MustMoney("75.00"), h.gateway.charges[0].Amount)
	assert.Equal(t, []events.EventType{events.EventUpgradeOrderCreated, events.EventUpgradeOrderCompleted}, h.recorded.types())

	ticket, err := h.mem.Store().Tickets.GetByID(context.Background(), generalTicket)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusUpgraded, ticket.Status)

	again := h.svc.Confirm(context.Background(), ConfirmRequest{OrderID: selected.Order.ID})
	assert.Equal(t, StateCompleted, again.State)
	assert.True(t, again.Replayed)
	assert.Len(t, h.gateway.charges, 1)
}

func TestConfirm_DeclinedPaymentLeavesOrderAwaitingPayment(t *testing.T) {
	h := newHarness(t, nil)
	h.gateway.status = payment.StatusFailed
	selected := h.svc.Select(context.Background(), SelectRequest{TicketRef: generalTicket, Choice: "Standard"})

	res := h.svc.Confirm(context.Background(), ConfirmRequest{OrderID: selected.Order.ID})

	assert.Equal(t, StateFailed, res.State)
	assert.True(t, res.Retryable)
	assert.Equal(t, errorutil.CodePaymentDeclined, res.Err.Code)
	assert.Contains(t, h.recorded.types(), events.EventUpgradePaymentFailed)

	order, err := h.svc.Order(context.Background(), selected.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAwaitingPayment, order.Order.Status)

	h.gateway.status = payment.StatusSucceeded
	retried := h.svc.Confirm(context.Background(), ConfirmRequest{OrderID: selected.Order.ID})
	assert.Equal(t, StateCompleted, retried.State)
	assert.Equal(t, domain.OrderStatusCompleted, retried.Order.Status)
}

func TestConfirm_UnknownOrderIsRejected(t *testing.T) {
	h := newHarness(t, nil)

	res := h.svc.Confirm(context.Background(), ConfirmRequest{OrderID: "6a1f7a52-0000-4000-8000-000000000000"})

	assert.Equal(t, StateRejected, res.State)
	assert.Equal(t, errorutil.CodeNotFound, res.Err.Code)
}

func TestCalendar_ReturnsForwardWindow(t *testing.T) {
	h := newHarness(t, nil)

	res := h.svc.Calendar(context.Background(), generalTicket, johnID, time.Time{})

	require.Nil(t, res.Err)
	require.Len(t, res.Days, 7)
	assert.Equal(t, time.Wednesday, res.Days[0].Date.Weekday())
	assert.True(t, res.Days[3].Weekend)
	assert.False(t, res.Days[0].Available, "today is inside the notice period")
	assert.False(t, res.Days[1].Available)
	assert.True(t, res.Days[2].Available)
}

func TestBestDates_CheapestWeekdaysAfterNoticePeriod(t *testing.T) {
	h := newHarness(t, nil)

	res := h.svc.BestDates(context.Background(), BestDatesRequest{
		TicketRef: generalTicket, CustomerID: johnID, Choice: "standard", Days: 14, Limit: 2,
	})

	require.Nil(t, res.Err)
	assert.Equal(t, domain.TierStandard, res.Tier)
	require.Len(t, res.Dates, 2)
	assert.Equal(t, "2026-10-16", res.Dates[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2026-10-19", res.Dates[1].Date.Format("2006-01-02"))
	assert.False(t, res.Dates[0].Quote.Weekend)
}

func TestBestDates_UnknownOrBlockedTierIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res := h.svc.BestDates(ctx, BestDatesRequest{TicketRef: generalTicket, Choice: "platinum"})
	assert.Equal(t, StateRejected, res.State)
	require.NotNil(t, res.Err)
	assert.Equal(t, errorutil.CodeValidation, res.Err.Code)

	placed := h.svc.Select(ctx, SelectRequest{TicketRef: generalTicket, Choice: "standard"})
	require.Equal(t, StateCompleted, placed.State)
	res = h.svc.BestDates(ctx, BestDatesRequest{TicketRef: generalTicket, Choice: "double fun"})
	assert.Equal(t, StateRejected, res.State)
	require.NotNil(t, res.Err)
	assert.Equal(t, errorutil.CodeIneligible, res.Err.Code)
	assert.Equal(t, "no_open_order", res.Err.Details["rule"])
}

func TestCheckIntegrityAndUpdateContact(t *testing.T) {
	h := newHarness(t, nil)

	report, err := h.svc.CheckIntegrity(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Healthy())
	assert.Equal(t, int64(6), report.TotalTickets)

	phone := "+1-555-0199"
	customer, err := h.svc.UpdateContact(context.Background(), johnID, domain.CustomerUpdate{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, *customer.Phone)

	_, err = h.svc.UpdateContact(context.Background(), johnID, domain.CustomerUpdate{})
	assert.Equal(t, errorutil.CodeValidation, errorutil.CodeOf(err))
}

func TestWorkflow_IllegalTransitionFailsAsInconsistency(t *testing.T) {
	w := newWorkflow("test", zapNop())

	ok := w.advance(StateCreating)

	assert.False(t, ok)
	assert.Equal(t, StateFailed, w.result.State)
	assert.Equal(t, errorutil.CodeInternalInconsistency, w.result.Err.Code)
	assert.False(t, w.result.Retryable)
}
