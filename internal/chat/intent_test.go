package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

func TestClassify(t *testing.T) {
	withTicket := domain.ConversationContext{SessionID: "s1", TicketID: "t1", QuotedTiers: domain.Tiers()}
	withOrder := withTicket
	withOrder.OrderID = "o1"

	cases := []struct {
		name string
		msg  string
		conv domain.ConversationContext
		want Intent
	}{
		{"greeting", "Hi there!", domain.ConversationContext{}, IntentGreeting},
		{"ticket number", "my ticket is TKT-20240101", domain.ConversationContext{}, IntentTicket},
		{"upgrade without ticket", "I want to upgrade", domain.ConversationContext{}, IntentUpgrade},
		{"explicit choice", "I'd like the Seat Upgrade", withTicket, IntentTierChoice},
		{"bare quoted tier", "Non-Stop", withTicket, IntentTierChoice},
		{"question about a tier", "What does Double Fun include?", withTicket, IntentUpgrade},
		{"category mention is not a choice", "I have a standard ticket, can I upgrade", domain.ConversationContext{}, IntentUpgrade},
		{"confirm open order", "yes, go ahead", withOrder, IntentConfirmation},
		{"no order, yes shows options", "yes", withTicket, IntentUpgrade},
		{"decline is not a confirmation", "no, don't pay yet", withOrder, IntentUnrecognized},
		{"noise", "asdf qwer", domain.ConversationContext{}, IntentUnrecognized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.msg, tc.conv))
		})
	}
}

func TestRules_AreOrderedByPrecedence(t *testing.T) {
	want := []Intent{IntentConfirmation, IntentTierChoice, IntentTicket, IntentUpgrade, IntentGreeting}
	got := make([]Intent, 0, len(Rules))
	for _, r := range Rules {
		got = append(got, r.Intent)
	}
	assert.Equal(t, want, got)
}
