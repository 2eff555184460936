package dataprovider

import "github.com/spec-kit/ticket-upgrade-agent/internal/toolcall"

// ToolSpec describes one entry of the tool catalog.
type ToolSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Arguments   []string `json:"arguments"`
	ReadOnly    bool     `json:"read_only"`
	// Idempotent tools may be retried by the caller without side effects.
	Idempotent bool `json:"idempotent"`
}

var catalog = []ToolSpec{
	{
		Name:        toolcall.GetCustomer,
		Description: "Fetch a customer record.",
		Arguments:   []string{"customer_id"},
		ReadOnly:    true,
		Idempotent:  true,
	},
	{
		Name:        toolcall.CreateCustomer,
		Description: "Register a customer. Fails with conflict when the email is already registered.",
		Arguments:   []string{"email", "first_name", "last_name", "phone?"},
	},
	{
		Name:        toolcall.GetTicketsForCustomer,
		Description: "List a customer's tickets ordered by purchase date.",
		Arguments:   []string{"customer_id"},
		ReadOnly:    true,
		Idempotent:  true,
	},
	{
		Name:        toolcall.GetTicket,
		Description: "Fetch a ticket by id or ticket number.",
		Arguments:   []string{"ticket_id"},
		ReadOnly:    true,
		Idempotent:  true,
	},
	{
		Name:        toolcall.FindOpenOrder,
		Description: "Return the pending or awaiting_payment order for a ticket.",
		Arguments:   []string{"ticket_id"},
		ReadOnly:    true,
		Idempotent:  true,
	},
	{
		Name:        toolcall.CreateUpgradeOrder,
		Description: "Create a pending upgrade order. Fails with conflict when the ticket already has an open order. Not idempotent unless idempotency_key is supplied.",
		Arguments:   []string{"ticket_id", "tier", "amount", "price_delta?", "idempotency_key?", "selected_date?"},
	},
	{
		Name:        toolcall.GetUpgradeOrder,
		Description: "Fetch an upgrade order with its status history.",
		Arguments:   []string{"order_id"},
		ReadOnly:    true,
		Idempotent:  true,
	},
	{
		Name:        toolcall.TransitionUpgradeOrder,
		Description: "Move an order along pending, awaiting_payment, completed or failed. Completion assigns the confirmation code and upgrades the ticket.",
		Arguments:   []string{"order_id", "status", "transaction_id?", "reason?"},
	},
	{
		Name:        toolcall.UpdateCustomer,
		Description: "Update a customer's contact fields.",
		Arguments:   []string{"customer_id", "first_name?", "last_name?", "phone?"},
		Idempotent:  true,
	},
	{
		Name:        toolcall.ValidateDataIntegrity,
		Description: "Aggregate counts and orphaned-reference report for operational checks.",
		Arguments:   []string{"stale_after_seconds?"},
		ReadOnly:    true,
		Idempotent:  true,
	},
}

// Catalog returns the tool catalog in a fixed order.
func Catalog() []ToolSpec {
	out := make([]ToolSpec, len(catalog))
	copy(out, catalog)
	return out
}

// Tool returns the catalog entry for name.
func Tool(name string) (ToolSpec, bool) {
	for _, spec := range catalog {
		if spec.Name == name {
			return spec, true
		}
	}
	return ToolSpec{}, false
}
