package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUpgradeOrderCreated   EventType = "upgrade_order_created"
	EventUpgradeOrderCompleted EventType = "upgrade_order_completed"
	EventUpgradePaymentFailed  EventType = "upgrade_payment_failed"
)

// Event represents a domain event emitted by the upgrade workflow.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	OrderID    string      `json:"order_id"`
	TicketID   string      `json:"ticket_id"`
	CustomerID string      `json:"customer_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// NewOrderEvent builds an event about order.
func NewOrderEvent(eventType EventType, order domain.UpgradeOrder, payload interface{}, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OrderID:    order.ID,
		TicketID:   order.TicketID,
		CustomerID: order.CustomerID,
		Timestamp:  at,
		Payload:    payload,
	}
}

// OrderCreatedPayload payload.
type OrderCreatedPayload struct {
	TicketNumber  string       `json:"ticket_number"`
	RequestedTier domain.Tier  `json:"requested_tier"`
	PriceDelta    domain.Money `json:"price_delta"`
	TotalAmount   domain.Money `json:"total_amount"`
}

// OrderCompletedPayload payload.
type OrderCompletedPayload struct {
	RequestedTier    domain.Tier  `json:"requested_tier"`
	TotalAmount      domain.Money `json:"total_amount"`
	ConfirmationCode string       `json:"confirmation_code"`
	TransactionID    string       `json:"transaction_id"`
}

// PaymentFailedPayload payload.
type PaymentFailedPayload struct {
	TotalAmount domain.Money `json:"total_amount"`
	Reason      string       `json:"reason"`
}
