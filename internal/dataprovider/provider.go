// Package dataprovider serves the data tool catalog over the toolcall
// contract. It reports what the store says and nothing else: a missing or
// unreachable record is always an error response.
package dataprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
	"github.com/spec-kit/ticket-upgrade-agent/internal/observability"
	"github.com/spec-kit/ticket-upgrade-agent/internal/repository"
	"github.com/spec-kit/ticket-upgrade-agent/internal/toolcall"
	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/validation"
)

type toolFunc func(ctx context.Context, args map[string]any) (any, error)

// Dependencies bundles provider collaborators.
type Dependencies struct {
	Store      *repository.Store
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	StaleAfter time.Duration
}

// Provider executes tool calls against the backing store.
type Provider struct {
	store      *repository.Store
	logger     *zap.Logger
	metrics    *observability.Metrics
	staleAfter time.Duration
	tools      map[string]toolFunc
}

func NewProvider(deps Dependencies) *Provider {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	staleAfter := deps.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	p := &Provider{
		store:      deps.Store,
		logger:     logger,
		metrics:    deps.Metrics,
		staleAfter: staleAfter,
	}
	p.tools = map[string]toolFunc{
		toolcall.GetCustomer:            p.getCustomer,
		toolcall.CreateCustomer:         p.createCustomer,
		toolcall.GetTicketsForCustomer:  p.getTicketsForCustomer,
		toolcall.GetTicket:              p.getTicket,
		toolcall.FindOpenOrder:          p.findOpenOrder,
		toolcall.CreateUpgradeOrder:     p.createUpgradeOrder,
		toolcall.GetUpgradeOrder:        p.getUpgradeOrder,
		toolcall.TransitionUpgradeOrder: p.transitionUpgradeOrder,
		toolcall.UpdateCustomer:         p.updateCustomer,
		toolcall.ValidateDataIntegrity:  p.validateDataIntegrity,
	}
	return p
}

// Handle executes one request. It implements toolcall.Handler.
func (p *Provider) Handle(ctx context.Context, req toolcall.Request) toolcall.Response {
	start := time.Now()
	fn, ok := p.tools[req.Tool]
	if !ok {
		p.metrics.RecordToolCall(req.Tool, string(toolcall.KindUnknownTool), time.Since(start))
		return toolcall.Fail(toolcall.KindUnknownTool, fmt.Sprintf("unknown tool %q", req.Tool))
	}

	result, err := fn(ctx, req.Arguments)
	elapsed := time.Since(start)
	fields := []zap.Field{
		zap.String("tool", req.Tool),
		zap.String("request_id", req.RequestID),
		zap.Duration("latency", elapsed),
	}
	if err != nil {
		resp := classify(err)
		p.metrics.RecordToolCall(req.Tool, string(resp.Error.Kind), elapsed)
		fields = append(fields, zap.String("kind", string(resp.Error.Kind)), zap.Error(err))
		switch resp.Error.Kind {
		case toolcall.KindInternal, toolcall.KindUpstreamUnavailable:
			p.logger.Warn("tool call failed", fields...)
		default:
			p.logger.Debug("tool call rejected", fields...)
		}
		return resp
	}

	p.metrics.RecordToolCall(req.Tool, "ok", elapsed)
	p.logger.Debug("tool call", fields...)
	return toolcall.OK(result)
}

// classify maps store and validation errors onto wire error kinds.
func classify(err error) toolcall.Response {
	var domainErr *errorutil.DomainError
	switch {
	case errors.As(err, &domainErr):
		return toolcall.Fail(toolcall.KindFromCode(domainErr.Code), domainErr.Message)
	case errors.Is(err, repository.ErrNotFound):
		return toolcall.Fail(toolcall.KindNotFound, "record not found")
	case errors.Is(err, repository.ErrOpenOrderExists):
		return toolcall.Fail(toolcall.KindConflict, repository.ErrOpenOrderExists.Error())
	case errors.Is(err, repository.ErrEmailTaken):
		return toolcall.Fail(toolcall.KindConflict, repository.ErrEmailTaken.Error())
	case errors.Is(err, repository.ErrInvalidTransition):
		return toolcall.Fail(toolcall.KindConflict, err.Error())
	case errors.Is(err, repository.ErrUnavailable), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return toolcall.Fail(toolcall.KindUpstreamUnavailable, "backing store unavailable")
	default:
		return toolcall.Fail(toolcall.KindInternal, "unexpected store error")
	}
}

func notFound(resource, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errorutil.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}

type customerArgs struct {
	CustomerID string `json:"customer_id" validate:"required,max=64"`
}

type createCustomerArgs struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"required,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,phone"`
}

type ticketArgs struct {
	TicketID string `json:"ticket_id" validate:"required,ticketref"`
}

type orderArgs struct {
	OrderID string `json:"order_id" validate:"required,max=64"`
}

type createOrderArgs struct {
	TicketID       string        `json:"ticket_id" validate:"required,ticketref"`
	Tier           string        `json:"tier" validate:"required"`
	Amount         domain.Money  `json:"amount" validate:"required"`
	PriceDelta     *domain.Money `json:"price_delta"`
	IdempotencyKey string        `json:"idempotency_key" validate:"max=128"`
	SelectedDate   *time.Time    `json:"selected_date"`
}

type transitionArgs struct {
	OrderID       string  `json:"order_id" validate:"required,max=64"`
	Status        string  `json:"status" validate:"required,oneof=awaiting_payment completed failed"`
	TransactionID *string `json:"transaction_id" validate:"omitempty,max=255"`
	Reason        *string `json:"reason" validate:"omitempty,max=500"`
}

type updateCustomerArgs struct {
	CustomerID string  `json:"customer_id" validate:"required,max=64"`
	FirstName  *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName   *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Phone      *string `json:"phone" validate:"omitempty,phone"`
}

type integrityArgs struct {
	StaleAfterSeconds int `json:"stale_after_seconds" validate:"gte=0"`
}

// OrderWithHistory is the get_upgrade_order result.
type OrderWithHistory struct {
	Order   domain.UpgradeOrder   `json:"order"`
	History []domain.OrderHistory `json:"history"`
}

// CreateOrderResult is the create_upgrade_order result. Replayed is true when
// an earlier order with the same idempotency key was returned.
type CreateOrderResult struct {
	Order    domain.UpgradeOrder `json:"order"`
	Replayed bool                `json:"replayed"`
}

func (p *Provider) getCustomer(ctx context.Context, raw map[string]any) (any, error) {
	args, err := validation.Decode[customerArgs](raw)
	if err != nil {
		return nil, err
	}
	customer, err := p.store.Customers.GetByID(ctx, args.CustomerID)
	if err != nil {
		return nil, notFound("customer", args.CustomerID, err)
	}
	return customer, nil
}

func (p *Provider) getTicketsForCustomer(ctx context.Context, raw map[string]any) (any, error) {
	args, err := validation.Decode[customerArgs](raw)
	if err != nil {
		return nil, err
	}
	if _, err := p.store.Customers.GetByID(ctx, args.CustomerID); err != nil {
		return nil, notFound("customer", args.CustomerID, err)
	}
	return p.store.Tickets.ListByCustomer(ctx, args.CustomerID)
}

func (p *Provider) getTicket(ctx context.Context, raw map[string]any) (any, error) {
	args, err := validation.Decode[ticketArgs](raw)
	if err != nil {
		return nil, err
	}
	return p.lookupTicket(ctx, args.TicketID)
}

// lookupTicket resolves a UUID by id and anything else by ticket number.
func (p *Provider) lookupTicket(ctx context.Context, ref string) (*domain.Ticket, error) {
	var (
		ticket *domain.Ticket
		err    error
	)
	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		ticket, err = p.store.Tickets.GetByID(ctx, ref)
	} else {
		ticket, err = p.store.Tickets.GetByNumber(ctx, ref)
	}
	if err != nil {
		return nil, notFound("ticket", ref, err)
	}
	return ticket, nil
}

func (p *Provider) findOpenOrder(ctx context.Context, raw map[string]any) (any, error) {
	args, err := validation.Decode[ticketArgs](raw)
	if err != nil {
		return nil, err
	}
	ticket, err := p.lookupTicket(ctx, args.TicketID)
	if err != nil {
		return nil, err
	}
	order, err := p.store.Orders.FindOpenByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, notFound("open upgrade order", ticket.ID, err)
	}
	return order, nil
}

func (p *Provider) createUpgradeOrder(ctx context.Context, raw map[string]any) (any, error) {
	args, err := validation.Decode[createOrderArgs](raw)
	if err != nil {
		return nil, err
	}
	tier, ok := domain.ParseTier(args.Tier)
	if !ok {
		return nil, errorutil.NewValidationError(fmt.Sprintf("unknown tier %q", args.Tier), nil)
	}
	if !args.Amount.IsPositive() {
		return nil, errorutil.NewValidationError("amount must be positive", nil)
	}

	ticket, err := p.lookupTicket(ctx, args.TicketID)
	if err != nil {
		return nil, err
	}
	delta := args.Amount.Sub(ticket.OriginalPrice)
	if args.PriceDelta != nil {
		delta = *args.PriceDelta
	}
	if ticket.OriginalPrice.Add(delta) != args.Amount {
		return nil, errorutil.NewValidationError(
			fmt.Sprintf("amount %s does not equal original price %s plus delta %s", args.Amount, ticket.OriginalPrice, delta), nil)
	}

	order := &domain.UpgradeOrder{
		TicketID:      ticket.ID,
		CustomerID:    ticket.CustomerID,
		RequestedTier: tier,
		OriginalTier:  ticket.Category,
		PriceDelta:    delta,
		TotalAmount:   args.Amount,
		SelectedDate:  args.SelectedDate,
	}
	if args.IdempotencyKey != "" {
		key := args.IdempotencyKey
		order.IdempotencyKey = &key
	}

	created, err := p.store.Orders.Create(ctx, order)
	if err != nil {
		return nil, notFound("ticket", args.TicketID, err)
	}
	if !created && order.TicketID != ticket.ID {
		return nil, errorutil.NewConflict("idempotency key was already used for a different ticket", nil)
	}
	return CreateOrderResult{Order: *order, Replayed: !created}, nil
}

func (p *Provider) getUpgradeOrder(ctx context.Context, raw map[string]any) (any, error) {
	args, err := validation.Decode[orderArgs](raw)
	if err != nil {
		return nil, err
	}
	order, err := p.store.Orders.GetByID(ctx, args.OrderID)
	if err != nil {
		return nil, notFound("upgrade order", args.OrderID, err)
	}
	history, err := p.store.Orders.ListHistory(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return OrderWithHistory{Order: *order, History: history}, nil
}

func (p *Provider) transitionUpgradeOrder(ctx context.Context, raw map[string]any) (any, error) {
	args, err := validation.Decode[transitionArgs](raw)
	if err != nil {
		return nil, err
	}
	order, err := p.store.Orders.Transition(ctx, domain.OrderTransition{
		OrderID:       args.OrderID,
		To:            domain.OrderStatus(args.Status),
		TransactionID: args.TransactionID,
		Reason:        args.Reason,
	})
	if err != nil {
		return nil, notFound("upgrade order", args.OrderID, err)
	}
	return order, nil
}

func (p *Provider) createCustomer(ctx context.Context, raw map[string]any) (any, error) {
	args, err := validation.Decode[createCustomerArgs](raw)
	if err != nil {
		return nil, err
	}
	customer, err := p.store.Customers.Create(ctx, domain.Customer{
		Email:     strings.ToLower(strings.TrimSpace(args.Email)),
		FirstName: strings.TrimSpace(args.FirstName),
		LastName:  strings.TrimSpace(args.LastName),
		Phone:     args.Phone,
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info("customer created", zap.String("customer_id", customer.ID))
	return customer, nil
}

func (p *Provider) updateCustomer(ctx context.Context, raw map[string]any) (any, error) {
	args, err := validation.Decode[updateCustomerArgs](raw)
	if err != nil {
		return nil, err
	}
	update := domain.CustomerUpdate{FirstName: args.FirstName, LastName: args.LastName, Phone: args.Phone}
	if update.Empty() {
		return nil, errorutil.NewValidationError("no fields to update", nil)
	}
	customer, err := p.store.Customers.Update(ctx, args.CustomerID, update)
	if err != nil {
		return nil, notFound("customer", args.CustomerID, err)
	}
	return customer, nil
}

func (p *Provider) validateDataIntegrity(ctx context.Context, raw map[string]any) (any, error) {
	args, err := validation.Decode[integrityArgs](raw)
	if err != nil {
		return nil, err
	}
	staleAfter := p.staleAfter
	if args.StaleAfterSeconds > 0 {
		staleAfter = time.Duration(args.StaleAfterSeconds) * time.Second
	}
	return p.store.Integrity.Check(ctx, staleAfter)
}
