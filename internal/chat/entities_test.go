package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

func TestExtractTicketID_Formats(t *testing.T) {
	cases := map[string]string{
		"here it is: 5B0C8C1E-7F0E-4D43-9D7C-2D7F9C1A0101": "5b0c8c1e-7f0e-4d43-9d7c-2d7f9c1a0101",
		"my ticket is tkt-20240101":                         "TKT-20240101",
		"ticket 333":                                        "333",
		"my ticket id is 4821":                              "4821",
		"it's #77123":                                       "77123",
		"ticket number: AB123":                              "AB123",
	}
	for msg, want := range cases {
		got, ok := ExtractTicketID(msg, nil)
		assert.True(t, ok, msg)
		assert.Equal(t, want, got, msg)
	}

	for _, msg := range []string{"I want to upgrade my ticket please", "hello there", "ticket 12"} {
		_, ok := ExtractTicketID(msg, nil)
		assert.False(t, ok, msg)
	}
}

func TestExtractTicketID_SearchesUserHistoryNewestFirst(t *testing.T) {
	history := []domain.Message{
		{Role: domain.RoleUser, Text: "ticket TKT-20240101"},
		{Role: domain.RoleAssistant, Text: "Did you mean TKT-20249999?"},
		{Role: domain.RoleUser, Text: "no, it's TKT-20240202"},
		{Role: domain.RoleUser, Text: "thanks"},
	}

	got, ok := ExtractTicketID("I'll take Standard", history)

	assert.True(t, ok)
	assert.Equal(t, "TKT-20240202", got)
}

func TestExtractTier_Precedence(t *testing.T) {
	cases := map[string]domain.Tier{
		"I'd like the Seat Upgrade":              domain.TierStandard,
		"the vip lounge sounds great":            domain.TierNonStop,
		"give me the all access pass":            domain.TierDoubleFun,
		"anything with backstage access?":        domain.TierDoubleFun,
		"Double Fun, but with priority seating":  domain.TierDoubleFun,
		"standard or non-stop, whichever":        domain.TierStandard,
		"the one with complimentary drinks":      domain.TierStandard,
		"Non-Stop Experience please":             domain.TierNonStop,
		"I'd like the non stop package":          domain.TierNonStop,
	}
	for msg, want := range cases {
		got, ok := ExtractTier(msg)
		assert.True(t, ok, msg)
		assert.Equal(t, want, got, msg)
	}

	_, ok := ExtractTier("what time does the show start")
	assert.False(t, ok)
	_, ok = ExtractTier("nonstandard seating")
	assert.False(t, ok, "tier names match whole words only")
}

func TestExtractBudget(t *testing.T) {
	got, ok := ExtractBudget("show me something under $60")
	assert.True(t, ok)
	assert.Equal(t, domain.MustMoney("60.00"), got)

	got, ok = ExtractBudget("my budget is 42.50")
	assert.True(t, ok)
	assert.Equal(t, domain.MustMoney("42.50"), got)

	_, ok = ExtractBudget("upgrade please")
	assert.False(t, ok)
}
