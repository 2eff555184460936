package domain

// MessageRole identifies the speaker of a conversation turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn of conversation history.
type Message struct {
	Role MessageRole `json:"role"`
	Text string      `json:"text"`
}

// EligibilityVerdict is the last known eligibility summary for the session's ticket.
type EligibilityVerdict string

const (
	EligibilityUnknown    EligibilityVerdict = ""
	EligibilityEligible   EligibilityVerdict = "eligible"
	EligibilityIneligible EligibilityVerdict = "ineligible"
)

// ConversationContext is the per-session state the router reads and returns.
// It is treated as a value: every turn produces an updated copy.
type ConversationContext struct {
	SessionID      string             `json:"session_id"`
	CustomerID     string             `json:"customer_id,omitempty"`
	TicketID       string             `json:"ticket_id,omitempty"`
	SelectedTier   Tier               `json:"selected_tier,omitempty"`
	Eligibility    EligibilityVerdict `json:"eligibility,omitempty"`
	QuotedTiers    []Tier             `json:"quoted_tiers,omitempty"`
	OrderID        string             `json:"order_id,omitempty"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
	BudgetCeiling  *Money             `json:"budget_ceiling,omitempty"`
}

// Clone returns a deep copy.
func (c ConversationContext) Clone() ConversationContext {
	out := c
	if c.QuotedTiers != nil {
		out.QuotedTiers = append([]Tier(nil), c.QuotedTiers...)
	}
	if c.BudgetCeiling != nil {
		b := *c.BudgetCeiling
		out.BudgetCeiling = &b
	}
	return out
}

// HasValidatedTicket reports whether a ticket id was validated earlier in the session.
func (c ConversationContext) HasValidatedTicket() bool {
	return c.TicketID != ""
}

// Quoted reports whether t was among the tiers last quoted to the customer.
func (c ConversationContext) Quoted(t Tier) bool {
	for _, q := range c.QuotedTiers {
		if q == t {
			return true
		}
	}
	return false
}
