package chat

import (
	"strings"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

// Intent is the classified purpose of one customer message.
type Intent string

const (
	IntentGreeting     Intent = "general_greeting"
	IntentTicket       Intent = "ticket_inquiry"
	IntentUpgrade      Intent = "upgrade_request"
	IntentTierChoice   Intent = "tier_selection"
	IntentConfirmation Intent = "upgrade_confirmation"
	IntentUnrecognized Intent = "unrecognized"
)

// Turn is the classifier's view of one message.
type Turn struct {
	Message   string
	Words     map[string]bool
	TicketRef string
	Tier      domain.Tier
	Context   domain.ConversationContext
}

// NewTurn extracts entities from the current message only.
func NewTurn(message string, conv domain.ConversationContext) Turn {
	t := Turn{Message: message, Words: words(message), Context: conv}
	t.TicketRef, _ = ticketRefIn(message)
	t.Tier, _ = ExtractTier(message)
	return t
}

func (t Turn) hasWord(ws ...string) bool {
	for _, w := range ws {
		if t.Words[w] {
			return true
		}
	}
	return false
}

func (t Turn) hasPhrase(ps ...string) bool {
	lower := strings.ToLower(t.Message)
	for _, p := range ps {
		if containsPhrase(lower, p) {
			return true
		}
	}
	return false
}

func (t Turn) affirmative() bool {
	if t.hasWord("no", "not", "don't", "cancel", "stop") {
		return false
	}
	return t.hasWord("yes", "yeah", "yep", "sure", "ok", "okay", "confirm", "proceed", "pay") ||
		t.hasPhrase("go ahead", "sounds good", "do it")
}

func (t Turn) choosing() bool {
	return t.hasWord("want", "like", "choose", "select", "take", "pick", "book", "buy", "purchase", "i'll", "go") &&
		!t.hasWord("don't", "not")
}

func (t Turn) asking() bool {
	return strings.Contains(t.Message, "?") ||
		t.hasWord("what", "which", "tell", "about", "difference", "compare", "explain", "does", "include", "includes")
}

// IntentRule is one named predicate. Rules are evaluated in order and the
// first match decides the intent.
type IntentRule struct {
	Intent Intent
	Match  func(Turn) bool
}

// Rules is the classification table, highest precedence first.
var Rules = []IntentRule{
	// an open order plus a yes means pay for it
	{IntentConfirmation, func(t Turn) bool {
		return t.Context.OrderID != "" && t.Tier == "" && t.affirmative()
	}},
	// a tier named with a selection cue, or a bare answer naming a quoted tier;
	// questions about a tier fall through to upgrade_request
	{IntentTierChoice, func(t Turn) bool {
		if t.Tier == "" || t.asking() {
			return false
		}
		return t.choosing() || t.Context.Quoted(t.Tier)
	}},
	{IntentTicket, func(t Turn) bool {
		return t.TicketRef != ""
	}},
	{IntentUpgrade, func(t Turn) bool {
		if t.hasWord("upgrade", "upgrades", "upgrading", "options", "tiers", "tier", "better", "enhance", "premium", "price", "prices", "pricing", "cost") {
			return true
		}
		if t.hasPhrase("how much", "what's available", "show me") {
			return true
		}
		return t.Tier != "" || (t.Context.HasValidatedTicket() && t.affirmative())
	}},
	{IntentGreeting, func(t Turn) bool {
		return t.hasWord("hello", "hi", "hey", "help", "thanks", "thank") ||
			t.hasPhrase("good morning", "good afternoon", "good evening", "what can you do")
	}},
}

// Classify maps a message onto exactly one intent.
func Classify(message string, conv domain.ConversationContext) Intent {
	return classifyTurn(NewTurn(message, conv))
}

func classifyTurn(t Turn) Intent {
	for _, rule := range Rules {
		if rule.Match(t) {
			return rule.Intent
		}
	}
	return IntentUnrecognized
}
