// Package chat turns free-form customer messages into upgrade workflow calls
// and formats the results as replies with presentation actions.
package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
	"github.com/spec-kit/ticket-upgrade-agent/internal/observability"
	"github.com/spec-kit/ticket-upgrade-agent/internal/service"
)

// Action is a presentation hint for the caller's UI.
type Action string

const (
	ActionShowUpgradeOptions  Action = "show_upgrade_options"
	ActionRequestTicketID     Action = "request_ticket_id"
	ActionOfferUpgradeOptions Action = "offer_upgrade_options"
	ActionConfirmUpgrade      Action = "confirm_upgrade"
	ActionShowConfirmation    Action = "show_confirmation"
	ActionRetryLater          Action = "retry_later"
	ActionRetryPayment        Action = "retry_payment"
	ActionContactSupport      Action = "contact_support"
	ActionShowHelp            Action = "show_help"
)

// maxKeyRenewals bounds how many failed orders one selection steps past.
const maxKeyRenewals = 3

// Upgrader is the part of the orchestration agent the router drives.
type Upgrader interface {
	Quote(ctx context.Context, req service.QuoteRequest) service.WorkflowResult
	Select(ctx context.Context, req service.SelectRequest) service.WorkflowResult
	Confirm(ctx context.Context, req service.ConfirmRequest) service.WorkflowResult
}

// Request is one inbound customer message.
type Request struct {
	Message string                     `json:"message"`
	History []domain.Message           `json:"history"`
	Context domain.ConversationContext `json:"context"`
}

// Response is the reply plus the context to send back next turn.
type Response struct {
	Reply          string                     `json:"reply"`
	Actions        []Action                   `json:"actions"`
	Intent         Intent                     `json:"intent"`
	Options        []TierOption               `json:"options,omitempty"`
	Order          *domain.UpgradeOrder       `json:"order,omitempty"`
	UpdatedContext domain.ConversationContext `json:"updatedContext"`
}

// Router classifies messages and delegates every business decision to the
// upgrade workflow.
type Router struct {
	upgrades Upgrader
	logger   *zap.Logger
	metrics  *observability.Metrics
	currency string
}

// RouterDependencies bundles router collaborators.
type RouterDependencies struct {
	Upgrades Upgrader
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Currency string
}

func NewRouter(deps RouterDependencies) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := deps.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Router{upgrades: deps.Upgrades, logger: logger, metrics: deps.Metrics, currency: currency}
}

// Handle processes one turn. The inbound context is never modified; the
// returned UpdatedContext is a fresh copy.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	conv := req.Context.Clone()
	if budget, ok := ExtractBudget(req.Message); ok {
		conv.BudgetCeiling = &budget
	}

	turn := NewTurn(req.Message, conv)
	intent := classifyTurn(turn)
	r.metrics.RecordIntent(string(intent))
	r.logger.Debug("chat intent",
		zap.String("session_id", conv.SessionID),
		zap.String("intent", string(intent)),
		zap.String("ticket_ref", turn.TicketRef),
		zap.String("tier", string(turn.Tier)))

	var resp Response
	switch intent {
	case IntentConfirmation:
		resp = r.confirm(ctx, conv)
	case IntentTierChoice:
		resp = r.selectTier(ctx, conv, turn, req.History)
	case IntentTicket:
		resp = r.inquire(ctx, conv, turn.TicketRef)
	case IntentUpgrade:
		resp = r.showOptions(ctx, conv)
	case IntentGreeting:
		resp = r.greet(conv)
	default:
		resp = Response{
			Reply:          "I can help you upgrade your event ticket. Tell me your ticket number (for example TKT-20240101) or ask to see the upgrade options.",
			Actions:        []Action{ActionShowHelp},
			UpdatedContext: conv,
		}
	}
	resp.Intent = intent
	if resp.Actions == nil {
		resp.Actions = []Action{}
	}
	return resp
}

// inquire validates a ticket named in the message and, when it can be
// upgraded, shows the options straight away.
func (r *Router) inquire(ctx context.Context, conv domain.ConversationContext, ref string) Response {
	res := r.upgrades.Quote(ctx, service.QuoteRequest{
		TicketRef:   ref,
		CustomerID:  conv.CustomerID,
		Preferences: service.Preferences{BudgetCeiling: conv.BudgetCeiling},
	})
	if res.Ticket != nil && res.Ticket.ID != conv.TicketID {
		// a different ticket starts a new selection
		conv.SelectedTier = ""
		conv.OrderID = ""
		conv.IdempotencyKey = ""
	}
	return r.quoted(conv, res, ref)
}

// showOptions prices the session's validated ticket. Without one it asks
// for the ticket and never reaches pricing.
func (r *Router) showOptions(ctx context.Context, conv domain.ConversationContext) Response {
	if !conv.HasValidatedTicket() {
		return Response{
			Reply:          "I'd be happy to show you the upgrade options. First, please tell me your ticket number (for example TKT-20240101) so I can check which upgrades apply to it.",
			Actions:        []Action{ActionRequestTicketID},
			UpdatedContext: conv,
		}
	}
	res := r.upgrades.Quote(ctx, service.QuoteRequest{
		TicketRef:   conv.TicketID,
		CustomerID:  conv.CustomerID,
		Preferences: service.Preferences{BudgetCeiling: conv.BudgetCeiling},
	})
	return r.quoted(conv, res, conv.TicketID)
}

func (r *Router) quoted(conv domain.ConversationContext, res service.WorkflowResult, ref string) Response {
	switch res.State {
	case service.StateAwaitingSelection:
		conv.TicketID = res.Ticket.ID
		conv.Eligibility = domain.EligibilityEligible
		conv.QuotedTiers = res.EligibleTiers()
		return Response{
			Reply:          r.optionsReply(res),
			Actions:        []Action{ActionShowUpgradeOptions},
			Options:        r.options(res.Quotes),
			UpdatedContext: conv,
		}
	case service.StateRejected:
		if res.Ticket != nil {
			// the ticket exists but nothing can be offered
			conv.TicketID = res.Ticket.ID
			conv.Eligibility = domain.EligibilityIneligible
			conv.QuotedTiers = nil
			if res.Order != nil && res.Order.Status.IsOpen() {
				conv.OrderID = res.Order.ID
				conv.SelectedTier = res.Order.RequestedTier
				return Response{
					Reply: fmt.Sprintf("Ticket %s already has a %s upgrade in progress (total %s). Reply \"confirm\" to complete the payment.",
						res.Ticket.TicketNumber, tierName(res.Order.RequestedTier), r.money(res.Order.TotalAmount)),
					Actions:        []Action{ActionConfirmUpgrade},
					Order:          res.Order,
					UpdatedContext: conv,
				}
			}
		} else if ref == conv.TicketID {
			conv.TicketID = ""
			conv.Eligibility = domain.EligibilityUnknown
			conv.QuotedTiers = nil
		}
	}
	return r.failure(conv, res, ref)
}

// selectTier turns a tier choice into a pending order. The ticket comes from
// the session, else from the most recent one mentioned in the conversation.
func (r *Router) selectTier(ctx context.Context, conv domain.ConversationContext, turn Turn, history []domain.Message) Response {
	conv.SelectedTier = turn.Tier
	ref := conv.TicketID
	if ref == "" {
		ref, _ = ExtractTicketID(turn.Message, history)
	}
	if ref == "" {
		return Response{
			Reply: fmt.Sprintf("Good choice! To book the %s upgrade I need your ticket number first (for example TKT-20240101).",
				tierName(turn.Tier)),
			Actions:        []Action{ActionRequestTicketID},
			UpdatedContext: conv,
		}
	}

	base := fmt.Sprintf("%s:%s:%s", conv.SessionID, ref, turn.Tier)
	key := base
	if strings.HasPrefix(conv.IdempotencyKey, base+":") {
		key = conv.IdempotencyKey
	}
	var res service.WorkflowResult
	for attempt := 0; attempt < maxKeyRenewals; attempt++ {
		res = r.upgrades.Select(ctx, service.SelectRequest{
			TicketRef:      ref,
			CustomerID:     conv.CustomerID,
			Choice:         string(turn.Tier),
			QuotedTiers:    conv.QuotedTiers,
			IdempotencyKey: key,
		})
		if !res.Replayed || res.Order == nil || res.Order.Status != domain.OrderStatusFailed {
			break
		}
		// a failed order spends its key; the next one is derived from it
		key = base + ":" + res.Order.ID
	}

	if res.Ticket != nil {
		conv.TicketID = res.Ticket.ID
	}
	if res.State == service.StateCompleted && res.Order != nil && res.Order.Status == domain.OrderStatusCompleted {
		conv.OrderID = ""
		conv.IdempotencyKey = ""
		return Response{
			Reply: fmt.Sprintf("Ticket %s already has the %s upgrade. There is nothing more to pay.",
				res.Ticket.TicketNumber, tierName(res.Order.RequestedTier)),
			Actions:        []Action{ActionShowConfirmation},
			Order:          res.Order,
			UpdatedContext: conv,
		}
	}
	if res.State == service.StateCompleted && res.Order != nil {
		conv.OrderID = res.Order.ID
		conv.IdempotencyKey = key
		conv.Eligibility = domain.EligibilityEligible
		return Response{
			Reply: fmt.Sprintf("Your %s upgrade for ticket %s is reserved: %s extra, %s in total. Reply \"confirm\" to complete the payment.",
				tierName(res.Order.RequestedTier), res.Ticket.TicketNumber, r.money(res.Order.PriceDelta), r.money(res.Order.TotalAmount)),
			Actions:        []Action{ActionConfirmUpgrade},
			Order:          res.Order,
			UpdatedContext: conv,
		}
	}
	if res.Order != nil && res.Order.Status.IsOpen() {
		conv.OrderID = res.Order.ID
	}
	return r.failure(conv, res, ref)
}

func (r *Router) confirm(ctx context.Context, conv domain.ConversationContext) Response {
	res := r.upgrades.Confirm(ctx, service.ConfirmRequest{OrderID: conv.OrderID, CustomerID: conv.CustomerID})
	if res.State == service.StateCompleted && res.Order != nil {
		code := ""
		if res.Order.ConfirmationCode != nil {
			code = *res.Order.ConfirmationCode
		}
		conv.IdempotencyKey = ""
		return Response{
			Reply: fmt.Sprintf("Your %s upgrade is confirmed! Your confirmation code is %s. A confirmation has been sent to you.",
				tierName(res.Order.RequestedTier), code),
			Actions:        []Action{ActionShowConfirmation},
			Order:          res.Order,
			UpdatedContext: conv,
		}
	}
	if res.State == service.StateRejected {
		conv.OrderID = ""
		conv.IdempotencyKey = ""
	}
	return r.failure(conv, res, conv.TicketID)
}

func (r *Router) greet(conv domain.ConversationContext) Response {
	reply := "Hello! I'm your ticket upgrade assistant. Share your ticket number and I'll show you the upgrades available for it."
	if conv.HasValidatedTicket() {
		reply = "Hello again! Would you like to see the upgrade options for your ticket?"
	}
	return Response{Reply: reply, UpdatedContext: conv}
}
