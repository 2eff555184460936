package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusActive    TicketStatus = "active"
	TicketStatusUpgraded  TicketStatus = "upgraded"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusExpired   TicketStatus = "expired"
)

// TicketCategory is the tier a ticket was purchased at.
type TicketCategory string

const (
	TicketCategoryGeneral  TicketCategory = "general"
	TicketCategoryStandard TicketCategory = "standard"
	TicketCategoryVIP      TicketCategory = "vip"
	TicketCategoryPremium  TicketCategory = "premium"
)

// Valid reports whether c is a known category.
func (c TicketCategory) Valid() bool {
	switch c {
	case TicketCategoryGeneral, TicketCategoryStandard, TicketCategoryVIP, TicketCategoryPremium:
		return true
	}
	return false
}

// Ticket is a purchased event ticket.
type Ticket struct {
	ID            string         `json:"id"`
	CustomerID    string         `json:"customer_id"`
	TicketNumber  string         `json:"ticket_number"`
	Category      TicketCategory `json:"category"`
	OriginalPrice Money          `json:"original_price"`
	PurchaseDate  time.Time      `json:"purchase_date"`
	EventDate     time.Time      `json:"event_date"`
	Status        TicketStatus   `json:"status"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsActive reports whether the ticket may still be upgraded at all.
func (t Ticket) IsActive() bool {
	return t.Status == TicketStatusActive
}

// CurrentTier maps the category onto the upgrade catalog when they coincide.
func (t Ticket) CurrentTier() Tier {
	return Tier(t.Category)
}
