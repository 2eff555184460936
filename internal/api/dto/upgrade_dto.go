package dto

import (
	"time"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
	"github.com/spec-kit/ticket-upgrade-agent/internal/pricing"
	"github.com/spec-kit/ticket-upgrade-agent/internal/service"
)

// DateLayout is the calendar date format accepted in queries and payloads.
const DateLayout = "2006-01-02"

// CreateUpgradeOrderRequest payload for POST /tickets/:id/upgrade-orders.
type CreateUpgradeOrderRequest struct {
	CustomerID     string `json:"customer_id" validate:"required,max=64"`
	Tier           string `json:"tier" validate:"required,max=64"`
	Date           string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=128"`
}

// ConfirmOrderRequest payload for POST /upgrade-orders/:id/confirm.
type ConfirmOrderRequest struct {
	CustomerID string `json:"customer_id" validate:"required,max=64"`
}

// UpdateCustomerRequest payload for PATCH /customers/:id.
type UpdateCustomerRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,phone"`
}

// Update converts the payload into a domain update.
func (r UpdateCustomerRequest) Update() domain.CustomerUpdate {
	return domain.CustomerUpdate{FirstName: r.FirstName, LastName: r.LastName, Phone: r.Phone}
}

// WorkflowResponse is the REST rendering of a finished workflow run.
type WorkflowResponse struct {
	State          service.WorkflowState   `json:"state"`
	Trail          []service.WorkflowState `json:"trail"`
	Ticket         *domain.Ticket          `json:"ticket,omitempty"`
	Quotes         []pricing.TierQuote     `json:"quotes,omitempty"`
	Recommendation *service.Recommendation `json:"recommendation,omitempty"`
	Order          *domain.UpgradeOrder    `json:"order,omitempty"`
	Replayed       bool                    `json:"replayed,omitempty"`
	Days           []pricing.CalendarDay   `json:"days,omitempty"`
	BestDates      []pricing.DatedQuote    `json:"best_dates,omitempty"`
	GeneratedAt    time.Time               `json:"generated_at"`
}

// NewWorkflowResponse copies the customer-facing parts of res.
func NewWorkflowResponse(res service.WorkflowResult, at time.Time) WorkflowResponse {
	return WorkflowResponse{
		State:          res.State,
		Trail:          res.Trail,
		Ticket:         res.Ticket,
		Quotes:         res.Quotes,
		Recommendation: res.Recommendation,
		Order:          res.Order,
		Replayed:       res.Replayed,
		GeneratedAt:    at,
	}
}
