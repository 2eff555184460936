package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-upgrade-agent/internal/dataprovider"
	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
	"github.com/spec-kit/ticket-upgrade-agent/internal/events"
	"github.com/spec-kit/ticket-upgrade-agent/internal/integration/payment"
	"github.com/spec-kit/ticket-upgrade-agent/internal/observability"
	"github.com/spec-kit/ticket-upgrade-agent/internal/pricing"
	"github.com/spec-kit/ticket-upgrade-agent/internal/toolcall"
	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
)

// MsgUpgradeInProgress is shown when a ticket already has an open order.
const MsgUpgradeInProgress = "an upgrade is already in progress for this ticket"

// MsgFailedOrderReplay is returned when an idempotency key points at an order that failed.
const MsgFailedOrderReplay = "the order placed with this idempotency key failed; submit the selection with a new key to order again"

// RuleOrderFailed names the rejection of a failed order.
const RuleOrderFailed = "order_failed"

// UpgradeService drives the upgrade workflow. It reaches customer, ticket and
// order data only through the data provider's tool calls.
type UpgradeService struct {
	client     *dataprovider.Client
	engine     *pricing.Engine
	payments   payment.Gateway
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// UpgradeDependencies bundles collaborators for the upgrade service.
type UpgradeDependencies struct {
	Invoker    toolcall.Invoker
	Engine     *pricing.Engine
	Payments   payment.Gateway
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Retry      RetryPolicy
	Clock      func() time.Time
}

// NewUpgradeService constructs the service.
func NewUpgradeService(deps UpgradeDependencies) *UpgradeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := deps.Engine
	if engine == nil {
		engine = pricing.NewEngine(pricing.DefaultConfig())
	}
	payments := deps.Payments
	if payments == nil {
		payments = payment.Disabled{}
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	retry := deps.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	return &UpgradeService{
		client:     dataprovider.NewClient(newRetryingInvoker(deps.Invoker, retry, logger)),
		engine:     engine,
		payments:   payments,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		now:        now,
	}
}

// QuoteRequest asks for validation and a three-tier comparison.
type QuoteRequest struct {
	TicketRef   string
	CustomerID  string
	Date        time.Time
	Preferences Preferences
}

// SelectRequest turns a customer's choice into an order.
type SelectRequest struct {
	TicketRef      string
	CustomerID     string
	Choice         string
	QuotedTiers    []domain.Tier
	Date           time.Time
	IdempotencyKey string
}

// ConfirmRequest asks to collect payment for an order.
type ConfirmRequest struct {
	OrderID    string
	CustomerID string
}

// CalendarResult is the forward price window for a validated ticket.
type CalendarResult struct {
	WorkflowResult
	Days []pricing.CalendarDay `json:"days,omitempty"`
}

// BestDatesResult lists the cheapest available days for one tier.
type BestDatesResult struct {
	WorkflowResult
	Tier  domain.Tier          `json:"tier,omitempty"`
	Dates []pricing.DatedQuote `json:"dates,omitempty"`
}

// BestDatesRequest asks for the cheapest days to book tier.
type BestDatesRequest struct {
	TicketRef  string
	CustomerID string
	Choice     string
	Days       int
	Limit      int
}

const (
	defaultBestDatesDays  = 30
	defaultBestDatesLimit = 10
)

// Validate checks the ticket and returns today's three-tier comparison.
func (s *UpgradeService) Validate(ctx context.Context, ticketRef, customerID string) WorkflowResult {
	return s.Quote(ctx, QuoteRequest{TicketRef: ticketRef, CustomerID: customerID})
}

// Quote validates the ticket, prices all tiers for the date and ranks them.
func (s *UpgradeService) Quote(ctx context.Context, req QuoteRequest) WorkflowResult {
	w := newWorkflow("quote", s.logger)
	res := s.quote(ctx, w, req)
	s.metrics.RecordWorkflow("quote", string(res.State))
	return res
}

func (s *UpgradeService) quote(ctx context.Context, w *workflow, req QuoteRequest) WorkflowResult {
	facts, ok := s.validate(ctx, w, req.TicketRef, req.CustomerID)
	if !ok {
		return w.result
	}
	s.price(w, facts, s.dateOrToday(req.Date), req.Preferences)
	return w.result
}

// price compares all tiers and stops in AwaitingSelection when at least one
// is eligible.
func (s *UpgradeService) price(w *workflow, facts pricing.Facts, date time.Time, prefs Preferences) bool {
	if !w.advance(StatePricing) {
		return false
	}
	quotes := s.engine.CompareTiers(facts, date)
	w.result.Quotes = quotes
	if len(pricing.EligibleTiers(quotes)) == 0 {
		w.reject(noEligibleTier(quotes))
		return false
	}
	if !w.advance(StateRecommending) {
		return false
	}
	w.result.Recommendation = Rank(quotes, prefs)
	return w.advance(StateAwaitingSelection)
}

// Select re-validates and re-prices, then creates an order for the chosen
// tier. The order is created pending; Completed means it exists.
func (s *UpgradeService) Select(ctx context.Context, req SelectRequest) WorkflowResult {
	w := newWorkflow("select", s.logger)
	res := s.selectTier(ctx, w, req)
	s.metrics.RecordWorkflow("select", string(res.State))
	return res
}

func (s *UpgradeService) selectTier(ctx context.Context, w *workflow, req SelectRequest) WorkflowResult {
	facts, ok := s.validate(ctx, w, req.TicketRef, req.CustomerID)
	if !ok {
		return w.result
	}
	// A resubmission of the same selection finds its own open order; the
	// provider replays it instead of creating another.
	if open := w.result.Order; open != nil && req.IdempotencyKey != "" &&
		open.IdempotencyKey != nil && *open.IdempotencyKey == req.IdempotencyKey {
		facts.HasOpenOrder = false
	}
	date := s.dateOrToday(req.Date)
	if !s.price(w, facts, date, Preferences{}) {
		return w.result
	}

	offered := req.QuotedTiers
	if len(offered) == 0 {
		offered = w.result.EligibleTiers()
	}
	tier, ok := MatchTier(req.Choice, offered)
	if !ok {
		return w.reject(errorutil.NewValidationError(
			fmt.Sprintf("%q does not match an offered upgrade; choose one of: %s", req.Choice, tierNames(offered)),
			map[string]any{"options": offered}))
	}

	var chosen pricing.TierQuote
	for _, q := range w.result.Quotes {
		if q.Info.Tier == tier {
			chosen = q
		}
	}
	if !chosen.Eligible {
		return w.reject(errorutil.NewIneligible(string(chosen.Rule), chosen.Reason))
	}

	if !w.advance(StateCreating) {
		return w.result
	}
	created, derr := s.client.CreateUpgradeOrder(ctx, dataprovider.CreateOrderInput{
		TicketID:       w.result.Ticket.ID,
		Tier:           tier,
		Amount:         chosen.Quote.Total,
		PriceDelta:     chosen.Quote.AdjustedDelta,
		IdempotencyKey: req.IdempotencyKey,
		SelectedDate:   &date,
	})
	if derr != nil {
		if derr.Code == errorutil.CodeConflict {
			return w.reject(errorutil.NewConflict(MsgUpgradeInProgress, derr.Details))
		}
		return w.stop(derr)
	}

	w.result.Order = &created.Order
	w.result.Replayed = created.Replayed
	if created.Replayed && created.Order.Status == domain.OrderStatusFailed {
		// the key is spent; a new order needs a new key
		return w.reject(errorutil.NewIneligible(RuleOrderFailed, MsgFailedOrderReplay))
	}
	if !w.advance(StateCompleted) {
		return w.result
	}
	if !created.Replayed {
		s.publish(ctx, events.NewOrderEvent(events.EventUpgradeOrderCreated, created.Order, events.OrderCreatedPayload{
			TicketNumber:  w.result.Ticket.TicketNumber,
			RequestedTier: tier,
			PriceDelta:    created.Order.PriceDelta,
			TotalAmount:   created.Order.TotalAmount,
		}, s.now()))
	}
	s.logger.Info("upgrade order created",
		zap.String("order_id", created.Order.ID),
		zap.String("ticket_id", created.Order.TicketID),
		zap.String("tier", string(tier)),
		zap.Bool("replayed", created.Replayed))
	return w.result
}

// Confirm collects payment for a pending order. A declined or failed charge
// leaves the order awaiting payment so the customer can retry.
func (s *UpgradeService) Confirm(ctx context.Context, req ConfirmRequest) WorkflowResult {
	w := newWorkflow("confirm", s.logger)
	res := s.confirm(ctx, w, req)
	s.metrics.RecordWorkflow("confirm", string(res.State))
	return res
}

func (s *UpgradeService) confirm(ctx context.Context, w *workflow, req ConfirmRequest) WorkflowResult {
	if !w.advance(StateConfirming) {
		return w.result
	}
	lookup := s.client.GetUpgradeOrder(ctx, req.OrderID)
	switch lookup.Outcome {
	case dataprovider.NotFound:
		return w.reject(errorutil.NewNotFound("upgrade order", map[string]any{"order_id": req.OrderID}))
	case dataprovider.Failed:
		return w.stop(lookup.Err)
	}
	order := lookup.Value.Order
	w.result.Order = &order
	if req.CustomerID != "" && order.CustomerID != req.CustomerID {
		return w.reject(errorutil.NewNotFound("upgrade order", map[string]any{"order_id": req.OrderID}))
	}

	switch order.Status {
	case domain.OrderStatusCompleted:
		w.result.Replayed = true
		w.advance(StateCompleted)
		return w.result
	case domain.OrderStatusFailed:
		return w.reject(errorutil.NewIneligible(RuleOrderFailed, "this upgrade order has already failed; please start a new upgrade"))
	case domain.OrderStatusPending:
		moved, derr := s.client.TransitionUpgradeOrder(ctx, dataprovider.TransitionInput{
			OrderID: order.ID, To: domain.OrderStatusAwaitingPayment,
		})
		if derr != nil {
			return w.stop(derr)
		}
		order = *moved
		w.result.Order = &order
	}

	charge, err := s.payments.Charge(ctx, payment.ChargeRequest{
		OrderID:  order.ID,
		Amount:   order.TotalAmount,
		Currency: s.engine.Config().Currency,
	})
	if err != nil {
		s.logger.Warn("payment collaborator failed", zap.String("order_id", order.ID), zap.Error(err))
		if errors.Is(err, payment.ErrNotConfigured) {
			return w.fail(errorutil.NewInternalInconsistency("payment is not available", err))
		}
		return w.fail(errorutil.NewUpstreamUnavailable("payment service is temporarily unavailable", err))
	}
	if charge.Status != payment.StatusSucceeded {
		reason := charge.Message
		if reason == "" {
			reason = "payment was declined"
		}
		s.logger.Warn("payment declined", zap.String("order_id", order.ID), zap.String("reason", reason))
		s.publish(ctx, events.NewOrderEvent(events.EventUpgradePaymentFailed, order, events.PaymentFailedPayload{
			TotalAmount: order.TotalAmount,
			Reason:      reason,
		}, s.now()))
		w.fail(errorutil.NewPaymentDeclined(reason))
		w.result.Retryable = true
		return w.result
	}

	done, derr := s.client.TransitionUpgradeOrder(ctx, dataprovider.TransitionInput{
		OrderID: order.ID, To: domain.OrderStatusCompleted, TransactionID: charge.TransactionID,
	})
	if derr != nil {
		s.logger.Error("payment captured but order not completed",
			zap.String("order_id", order.ID), zap.String("transaction_id", charge.TransactionID), zap.Error(derr))
		return w.fail(errorutil.NewInternalInconsistency("payment captured but the order could not be completed", derr))
	}
	w.result.Order = done
	if !w.advance(StateCompleted) {
		return w.result
	}
	code := ""
	if done.ConfirmationCode != nil {
		code = *done.ConfirmationCode
	}
	s.publish(ctx, events.NewOrderEvent(events.EventUpgradeOrderCompleted, *done, events.OrderCompletedPayload{
		RequestedTier:    done.RequestedTier,
		TotalAmount:      done.TotalAmount,
		ConfirmationCode: code,
		TransactionID:    charge.TransactionID,
	}, s.now()))
	s.logger.Info("upgrade completed", zap.String("order_id", done.ID), zap.String("confirmation_code", code))
	return w.result
}

// Calendar validates the ticket and prices every tier for the forward window.
func (s *UpgradeService) Calendar(ctx context.Context, ticketRef, customerID string, from time.Time) CalendarResult {
	w := newWorkflow("calendar", s.logger)
	facts, ok := s.validate(ctx, w, ticketRef, customerID)
	if !ok {
		s.metrics.RecordWorkflow("calendar", string(w.result.State))
		return CalendarResult{WorkflowResult: w.result}
	}
	w.advance(StatePricing)
	days := s.engine.Calendar(facts, s.now(), s.dateOrToday(from))
	s.metrics.RecordWorkflow("calendar", string(w.result.State))
	return CalendarResult{WorkflowResult: w.result, Days: days}
}

// BestDates validates the ticket and finds the cheapest available days for
// the chosen tier, starting today.
func (s *UpgradeService) BestDates(ctx context.Context, req BestDatesRequest) BestDatesResult {
	w := newWorkflow("best_dates", s.logger)
	res := s.bestDates(ctx, w, req)
	s.metrics.RecordWorkflow("best_dates", string(res.State))
	return res
}

func (s *UpgradeService) bestDates(ctx context.Context, w *workflow, req BestDatesRequest) BestDatesResult {
	facts, ok := s.validate(ctx, w, req.TicketRef, req.CustomerID)
	if !ok || !w.advance(StatePricing) {
		return BestDatesResult{WorkflowResult: w.result}
	}
	tier, ok := MatchTier(req.Choice, domain.Tiers())
	if !ok {
		return BestDatesResult{WorkflowResult: w.reject(errorutil.NewValidationError(
			fmt.Sprintf("%q is not an upgrade tier; choose one of: %s", req.Choice, tierNames(domain.Tiers())),
			map[string]any{"options": domain.Tiers()}))}
	}
	days, limit := req.Days, req.Limit
	if days <= 0 {
		days = defaultBestDatesDays
	}
	if limit <= 0 {
		limit = defaultBestDatesLimit
	}
	dates := s.engine.BestDates(facts, tier, s.now(), days, limit)
	if len(dates) == 0 {
		// no dates because the tier itself is out of reach, not the calendar
		verdict := s.engine.Evaluate(facts, tier, s.now())
		if !verdict.Eligible && verdict.Rule != pricing.RuleEventUpcoming {
			return BestDatesResult{WorkflowResult: w.reject(errorutil.NewIneligible(string(verdict.Rule), verdict.Reason)), Tier: tier}
		}
	}
	return BestDatesResult{WorkflowResult: w.result, Tier: tier, Dates: dates}
}

// CheckIntegrity runs the store's consistency checks.
func (s *UpgradeService) CheckIntegrity(ctx context.Context) (*domain.IntegrityReport, error) {
	report, derr := s.client.ValidateDataIntegrity(ctx)
	if derr != nil {
		return nil, derr
	}
	if !report.Healthy() {
		s.logger.Warn("integrity check found problems", zap.Any("report", report))
	}
	return report, nil
}

// UpdateContact changes a customer's mutable contact fields.
func (s *UpgradeService) UpdateContact(ctx context.Context, customerID string, update domain.CustomerUpdate) (*domain.Customer, error) {
	if update.Empty() {
		return nil, errorutil.NewValidationError("no contact field to update", nil)
	}
	customer, derr := s.client.UpdateCustomer(ctx, customerID, update)
	if derr != nil {
		return nil, derr
	}
	return customer, nil
}

// Order returns an order with its audit trail.
func (s *UpgradeService) Order(ctx context.Context, orderID string) (*dataprovider.OrderWithHistory, error) {
	lookup := s.client.GetUpgradeOrder(ctx, orderID)
	switch lookup.Outcome {
	case dataprovider.Found:
		return &lookup.Value, nil
	case dataprovider.NotFound:
		return nil, errorutil.NewNotFound("upgrade order", map[string]any{"order_id": orderID})
	default:
		return nil, lookup.Err
	}
}

// CustomerTickets lists a customer's tickets.
func (s *UpgradeService) CustomerTickets(ctx context.Context, customerID string) ([]domain.Ticket, error) {
	customer := s.client.GetCustomer(ctx, customerID)
	switch customer.Outcome {
	case dataprovider.NotFound:
		return nil, errorutil.NewNotFound("customer", map[string]any{"customer_id": customerID})
	case dataprovider.Failed:
		return nil, customer.Err
	}
	tickets := s.client.GetTicketsForCustomer(ctx, customerID)
	if tickets.Outcome == dataprovider.Failed {
		return nil, tickets.Err
	}
	return tickets.Value, nil
}

// validate resolves the ticket, checks ownership, loads the owner and looks
// for an open order. On failure the workflow has already stopped.
func (s *UpgradeService) validate(ctx context.Context, w *workflow, ticketRef, customerID string) (pricing.Facts, bool) {
	if !w.advance(StateValidating) {
		return pricing.Facts{}, false
	}
	ticketRef = strings.TrimSpace(ticketRef)
	if ticketRef == "" {
		w.reject(errorutil.NewValidationError("a ticket id is required", nil))
		return pricing.Facts{}, false
	}

	ticket := s.client.GetTicket(ctx, ticketRef)
	switch ticket.Outcome {
	case dataprovider.NotFound:
		w.reject(ticketNotFound(ticketRef))
		return pricing.Facts{}, false
	case dataprovider.Failed:
		w.stop(ticket.Err)
		return pricing.Facts{}, false
	}
	if customerID != "" && ticket.Value.CustomerID != customerID {
		s.logger.Info("ticket not owned by caller",
			zap.String("ticket_id", ticket.Value.ID), zap.String("customer_id", customerID))
		w.reject(ticketNotFound(ticketRef))
		return pricing.Facts{}, false
	}
	w.result.Ticket = &ticket.Value

	customer := s.client.GetCustomer(ctx, ticket.Value.CustomerID)
	switch customer.Outcome {
	case dataprovider.NotFound:
		w.fail(errorutil.NewInternalInconsistency("ticket owner is missing",
			fmt.Errorf("ticket %s references customer %s", ticket.Value.ID, ticket.Value.CustomerID)))
		return pricing.Facts{}, false
	case dataprovider.Failed:
		w.stop(customer.Err)
		return pricing.Facts{}, false
	}
	w.result.Customer = &customer.Value

	open := s.client.FindOpenOrder(ctx, ticket.Value.ID)
	if open.Outcome == dataprovider.Failed {
		w.stop(open.Err)
		return pricing.Facts{}, false
	}
	if open.Outcome == dataprovider.Found {
		w.result.Order = &open.Value
	}
	return pricing.Facts{Ticket: ticket.Value, HasOpenOrder: open.Outcome == dataprovider.Found}, true
}

func (s *UpgradeService) dateOrToday(date time.Time) time.Time {
	if date.IsZero() {
		return s.now()
	}
	return date
}

func (s *UpgradeService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

// MatchTier resolves a raw choice against the offered tiers by identifier,
// short name or display name.
func MatchTier(choice string, offered []domain.Tier) (domain.Tier, bool) {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return "", false
	}
	for _, t := range offered {
		info, ok := domain.LookupTier(t)
		if !ok {
			continue
		}
		if strings.EqualFold(choice, string(t)) || strings.EqualFold(choice, info.Name) || strings.EqualFold(choice, info.DisplayName) {
			return t, true
		}
	}
	return "", false
}

func ticketNotFound(ref string) *errorutil.DomainError {
	err := errorutil.NewNotFound("ticket", map[string]any{"ticket_id": ref})
	err.Message = fmt.Sprintf("ticket %s was not found", ref)
	return err
}

// noEligibleTier explains why nothing can be offered, using the first rule
// that failed for every tier when they agree.
func noEligibleTier(quotes []pricing.TierQuote) *errorutil.DomainError {
	if len(quotes) == 0 {
		return errorutil.NewIneligible("", "no upgrade is available for this ticket")
	}
	first := quotes[0]
	for _, q := range quotes[1:] {
		if q.Rule != first.Rule {
			return errorutil.NewIneligible(string(pricing.RuleUpgradePath), "no upgrade is available for this ticket")
		}
	}
	return errorutil.NewIneligible(string(first.Rule), first.Reason)
}

func tierNames(tiers []domain.Tier) string {
	names := make([]string, 0, len(tiers))
	for _, t := range tiers {
		if info, ok := domain.LookupTier(t); ok {
			names = append(names, info.Name)
		}
	}
	return strings.Join(names, ", ")
}
