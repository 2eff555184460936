package chat

import (
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
	"github.com/spec-kit/ticket-upgrade-agent/internal/pricing"
	"github.com/spec-kit/ticket-upgrade-agent/internal/service"
	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
)

// TierOption is one tier card for the presentation layer.
type TierOption struct {
	Tier        domain.Tier  `json:"tier"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Features    []string     `json:"features"`
	PriceDelta  domain.Money `json:"price_delta"`
	Total       domain.Money `json:"total"`
	Currency    string       `json:"currency"`
	Eligible    bool         `json:"eligible"`
	Reason      string       `json:"reason,omitempty"`
	Recommended bool         `json:"recommended,omitempty"`
}

func (r *Router) options(quotes []pricing.TierQuote) []TierOption {
	out := make([]TierOption, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, TierOption{
			Tier:        q.Info.Tier,
			Name:        q.Info.DisplayName,
			Description: q.Info.Description,
			Features:    q.Info.Features,
			PriceDelta:  q.Quote.AdjustedDelta,
			Total:       q.Quote.Total,
			Currency:    q.Quote.Currency,
			Eligible:    q.Eligible,
			Reason:      q.Reason,
		})
	}
	return out
}

func (r *Router) optionsReply(res service.WorkflowResult) string {
	var b strings.Builder
	t := res.Ticket
	fmt.Fprintf(&b, "I found ticket %s (%s, %s, event on %s). Here are your upgrade options:",
		t.TicketNumber, t.Category, r.money(t.OriginalPrice), t.EventDate.Format("Jan 2, 2006"))
	for _, q := range res.Quotes {
		if !q.Eligible {
			continue
		}
		fmt.Fprintf(&b, "\n- %s: +%s (total %s)", q.Info.DisplayName, r.money(q.Quote.AdjustedDelta), r.money(q.Quote.Total))
		if q.Quote.Weekend {
			b.WriteString(", weekend pricing")
		}
	}
	if rec := res.Recommendation; rec != nil {
		fmt.Fprintf(&b, "\nMy suggestion: %s.", rec.Reason)
	}
	b.WriteString("\nWhich one would you like?")
	return b.String()
}

// failure explains a rejected or failed workflow in customer terms. It never
// falls back to a greeting and never shows internal details.
func (r *Router) failure(conv domain.ConversationContext, res service.WorkflowResult, ref string) Response {
	resp := Response{UpdatedContext: conv, Order: res.Order}
	err := res.Err
	if err == nil {
		err = errorutil.NewInternalInconsistency("workflow ended without a result", nil)
	}

	switch err.Code {
	case errorutil.CodeNotFound:
		if _, isOrder := err.Details["order_id"]; isOrder {
			resp.Reply = "I couldn't find that upgrade order any more. Would you like to start a new upgrade?"
			resp.Actions = []Action{ActionOfferUpgradeOptions}
		} else {
			resp.Reply = fmt.Sprintf("I couldn't find a ticket with the ID %s. Please check the number on your ticket (it looks like TKT-20240101) and send it again.", ref)
			resp.Actions = []Action{ActionRequestTicketID}
		}
	case errorutil.CodeValidation:
		resp.Reply = err.Message
		if len(res.Quotes) > 0 {
			resp.Reply = fmt.Sprintf("Sorry, I didn't catch which upgrade you want. You can choose %s.", joinTiers(res.EligibleTiers()))
			resp.Actions = []Action{ActionOfferUpgradeOptions}
			resp.Options = r.options(res.Quotes)
		} else {
			resp.Actions = []Action{ActionRequestTicketID}
		}
	case errorutil.CodeIneligible:
		resp.Reply = fmt.Sprintf("This upgrade isn't available: %s.", err.Message)
		if others := res.EligibleTiers(); len(others) > 0 {
			resp.Reply += fmt.Sprintf(" You can still choose %s.", joinTiers(others))
			resp.Actions = []Action{ActionOfferUpgradeOptions}
			resp.Options = r.options(res.Quotes)
		} else {
			resp.Actions = []Action{ActionContactSupport}
		}
	case errorutil.CodeConflict:
		resp.Reply = "An upgrade is already in progress for this ticket. Reply \"confirm\" to complete it, or contact support to change it."
		resp.Actions = []Action{ActionConfirmUpgrade, ActionContactSupport}
	case errorutil.CodePaymentDeclined:
		resp.Reply = fmt.Sprintf("Your payment didn't go through (%s). Your upgrade is still reserved, so you can try again.", err.Message)
		resp.Actions = []Action{ActionRetryPayment}
	case errorutil.CodeUpstreamUnavailable:
		resp.Reply = "Our ticket system is temporarily unavailable, so I couldn't finish that. Nothing was charged. Please try again in a moment."
		resp.Actions = []Action{ActionRetryLater}
	default:
		resp.Reply = "Sorry, something went wrong on our side and I couldn't complete that. Our support team can help you finish your upgrade."
		resp.Actions = []Action{ActionContactSupport}
	}
	return resp
}

func (r *Router) money(m domain.Money) string {
	if r.currency == "USD" {
		return "$" + m.String()
	}
	return m.String() + " " + r.currency
}

func tierName(t domain.Tier) string {
	if info, ok := domain.LookupTier(t); ok {
		return info.Name
	}
	return string(t)
}

func joinTiers(tiers []domain.Tier) string {
	names := make([]string, 0, len(tiers))
	for _, t := range tiers {
		names = append(names, tierName(t))
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
}
