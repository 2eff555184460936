package domain

import "time"

// OrderStatus enumerates upgrade order states.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusFailed          OrderStatus = "failed"
)

// OpenOrderStatuses are the non-terminal states; at most one order per ticket may be in them.
var OpenOrderStatuses = []OrderStatus{OrderStatusPending, OrderStatusAwaitingPayment}

// IsOpen reports whether s is non-terminal.
func (s OrderStatus) IsOpen() bool {
	return s == OrderStatusPending || s == OrderStatusAwaitingPayment
}

// IsTerminal reports whether s is final.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusAwaitingPayment, OrderStatusFailed},
	OrderStatusAwaitingPayment: {OrderStatusCompleted, OrderStatusFailed},
	OrderStatusCompleted:       {},
	OrderStatusFailed:          {},
}

// CanTransition reports whether an order may move from current to next.
func CanTransition(current, next OrderStatus) bool {
	for _, candidate := range orderTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// UpgradeOrder records a confirmed tier selection.
type UpgradeOrder struct {
	ID               string         `json:"id"`
	TicketID         string         `json:"ticket_id"`
	CustomerID       string         `json:"customer_id"`
	RequestedTier    Tier           `json:"requested_tier"`
	OriginalTier     TicketCategory `json:"original_tier"`
	PriceDelta       Money          `json:"price_delta"`
	TotalAmount      Money          `json:"total_amount"`
	Status           OrderStatus    `json:"status"`
	ConfirmationCode *string        `json:"confirmation_code,omitempty"`
	IdempotencyKey   *string        `json:"idempotency_key,omitempty"`
	TransactionID    *string        `json:"transaction_id,omitempty"`
	FailureReason    *string        `json:"failure_reason,omitempty"`
	SelectedDate     *time.Time     `json:"selected_date,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// OrderTransition is a requested status change.
type OrderTransition struct {
	OrderID       string
	To            OrderStatus
	TransactionID *string
	Reason        *string
}

// OrderHistory is an immutable audit trail entry for an order status change.
type OrderHistory struct {
	ID         string         `json:"id"`
	OrderID    string         `json:"order_id"`
	FromStatus *OrderStatus   `json:"from_status,omitempty"`
	ToStatus   OrderStatus    `json:"to_status"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// IntegrityReport aggregates store counts and orphaned references.
type IntegrityReport struct {
	TotalCustomers  int64     `json:"total_customers"`
	TotalTickets    int64     `json:"total_tickets"`
	TotalOrders     int64     `json:"total_orders"`
	OrphanedTickets int64     `json:"orphaned_tickets"`
	OrphanedOrders  int64     `json:"orphaned_orders"`
	DuplicateOpen   int64     `json:"duplicate_open_orders"`
	StaleOpenOrders int64     `json:"stale_open_orders"`
	CompletedNoCode int64     `json:"completed_without_code"`
	CheckedAt       time.Time `json:"checked_at"`
}

// Healthy reports whether no integrity problem was found.
func (r IntegrityReport) Healthy() bool {
	return r.OrphanedTickets == 0 && r.OrphanedOrders == 0 && r.DuplicateOpen == 0 && r.CompletedNoCode == 0
}
