package dataprovider

import (
	"context"
	"time"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
	"github.com/spec-kit/ticket-upgrade-agent/internal/toolcall"
	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
)

// Outcome tags a Lookup result.
type Outcome int

const (
	Found Outcome = iota
	NotFound
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Lookup is the result of a read. Exactly one of Value (Found), nothing
// (NotFound) or Err (Failed) is meaningful; callers switch on Outcome.
type Lookup[T any] struct {
	Outcome Outcome
	Value   T
	Err     *errorutil.DomainError
}

func lookupFrom[T any](resp toolcall.Response) Lookup[T] {
	var out Lookup[T]
	err := resp.Decode(&out.Value)
	if err == nil {
		out.Outcome = Found
		return out
	}
	out.Err = asDomainError(err)
	if out.Err.Code == errorutil.CodeNotFound {
		out.Outcome = NotFound
	} else {
		out.Outcome = Failed
	}
	return out
}

func asDomainError(err error) *errorutil.DomainError {
	if te, ok := err.(*toolcall.Error); ok {
		return te.DomainError()
	}
	return errorutil.ToDomainError(err)
}

// Client is the typed, orchestrator-side view of the tool catalog. It adds
// no retries; the caller decides what may be repeated.
type Client struct {
	invoker toolcall.Invoker
}

func NewClient(invoker toolcall.Invoker) *Client {
	return &Client{invoker: invoker}
}

func (c *Client) call(ctx context.Context, tool string, args map[string]any) toolcall.Response {
	return c.invoker.Invoke(ctx, toolcall.Request{Tool: tool, Arguments: args})
}

func (c *Client) GetCustomer(ctx context.Context, customerID string) Lookup[domain.Customer] {
	return lookupFrom[domain.Customer](c.call(ctx, toolcall.GetCustomer, map[string]any{"customer_id": customerID}))
}

func (c *Client) GetTicketsForCustomer(ctx context.Context, customerID string) Lookup[[]domain.Ticket] {
	return lookupFrom[[]domain.Ticket](c.call(ctx, toolcall.GetTicketsForCustomer, map[string]any{"customer_id": customerID}))
}

func (c *Client) GetTicket(ctx context.Context, ticketRef string) Lookup[domain.Ticket] {
	return lookupFrom[domain.Ticket](c.call(ctx, toolcall.GetTicket, map[string]any{"ticket_id": ticketRef}))
}

func (c *Client) FindOpenOrder(ctx context.Context, ticketID string) Lookup[domain.UpgradeOrder] {
	return lookupFrom[domain.UpgradeOrder](c.call(ctx, toolcall.FindOpenOrder, map[string]any{"ticket_id": ticketID}))
}

func (c *Client) GetUpgradeOrder(ctx context.Context, orderID string) Lookup[OrderWithHistory] {
	return lookupFrom[OrderWithHistory](c.call(ctx, toolcall.GetUpgradeOrder, map[string]any{"order_id": orderID}))
}

// CreateOrderInput carries create_upgrade_order arguments.
type CreateOrderInput struct {
	TicketID       string
	Tier           domain.Tier
	Amount         domain.Money
	PriceDelta     domain.Money
	IdempotencyKey string
	SelectedDate   *time.Time
}

func (c *Client) CreateUpgradeOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, *errorutil.DomainError) {
	args := map[string]any{
		"ticket_id":   in.TicketID,
		"tier":        string(in.Tier),
		"amount":      in.Amount.String(),
		"price_delta": in.PriceDelta.String(),
	}
	if in.IdempotencyKey != "" {
		args["idempotency_key"] = in.IdempotencyKey
	}
	if in.SelectedDate != nil {
		args["selected_date"] = in.SelectedDate.Format(time.RFC3339)
	}
	var out CreateOrderResult
	if err := c.call(ctx, toolcall.CreateUpgradeOrder, args).Decode(&out); err != nil {
		return nil, asDomainError(err)
	}
	return &out, nil
}

// TransitionInput carries transition_upgrade_order arguments.
type TransitionInput struct {
	OrderID       string
	To            domain.OrderStatus
	TransactionID string
	Reason        string
}

func (c *Client) TransitionUpgradeOrder(ctx context.Context, in TransitionInput) (*domain.UpgradeOrder, *errorutil.DomainError) {
	args := map[string]any{"order_id": in.OrderID, "status": string(in.To)}
	if in.TransactionID != "" {
		args["transaction_id"] = in.TransactionID
	}
	if in.Reason != "" {
		args["reason"] = in.Reason
	}
	var out domain.UpgradeOrder
	if err := c.call(ctx, toolcall.TransitionUpgradeOrder, args).Decode(&out); err != nil {
		return nil, asDomainError(err)
	}
	return &out, nil
}

func (c *Client) UpdateCustomer(ctx context.Context, customerID string, update domain.CustomerUpdate) (*domain.Customer, *errorutil.DomainError) {
	args := map[string]any{"customer_id": customerID}
	if update.FirstName != nil {
		args["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		args["last_name"] = *update.LastName
	}
	if update.Phone != nil {
		args["phone"] = *update.Phone
	}
	var out domain.Customer
	if err := c.call(ctx, toolcall.UpdateCustomer, args).Decode(&out); err != nil {
		return nil, asDomainError(err)
	}
	return &out, nil
}

func (c *Client) ValidateDataIntegrity(ctx context.Context) (*domain.IntegrityReport, *errorutil.DomainError) {
	var out domain.IntegrityReport
	if err := c.call(ctx, toolcall.ValidateDataIntegrity, nil).Decode(&out); err != nil {
		return nil, asDomainError(err)
	}
	return &out, nil
}
