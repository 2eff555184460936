package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
	"github.com/spec-kit/ticket-upgrade-agent/internal/pricing"
)

func zapNop() *zap.Logger { return zap.NewNop() }

func generalQuotes(t *testing.T) []pricing.TierQuote {
	t.Helper()
	engine := pricing.NewEngine(pricing.DefaultConfig())
	ticket := domain.Ticket{
		ID: "t1", Category: domain.TicketCategoryGeneral, Status: domain.TicketStatusActive,
		OriginalPrice: domain.MustMoney("50.00"), EventDate: testNow.AddDate(0, 1, 0),
	}
	return engine.CompareTiers(pricing.Facts{Ticket: ticket}, testNow)
}

func TestRank_NoBudgetNoRecommendation(t *testing.T) {
	assert.Nil(t, Rank(generalQuotes(t), Preferences{}))
}

func TestRank_HighestTierWithinBudget(t *testing.T) {
	budget := domain.MustMoney("75.00")
	rec := Rank(generalQuotes(t), Preferences{BudgetCeiling: &budget})

	require.NotNil(t, rec)
	assert.Equal(t, domain.TierDoubleFun, rec.Tier)
	assert.Equal(t, []domain.Tier{domain.TierDoubleFun, domain.TierNonStop, domain.TierStandard},
		[]domain.Tier{rec.Ranked[0].Tier, rec.Ranked[1].Tier, rec.Ranked[2].Tier})
}

func TestRank_CheapestWhenNothingFits(t *testing.T) {
	budget := domain.MustMoney("10.00")
	rec := Rank(generalQuotes(t), Preferences{BudgetCeiling: &budget})

	require.NotNil(t, rec)
	assert.Equal(t, domain.TierStandard, rec.Tier)
	assert.Contains(t, rec.Reason, "most affordable")
}

func TestRank_IgnoresIneligibleTiers(t *testing.T) {
	quotes := generalQuotes(t)
	quotes[2].Eligible = false
	budget := domain.MustMoney("100.00")

	rec := Rank(quotes, Preferences{BudgetCeiling: &budget})

	require.NotNil(t, rec)
	assert.Equal(t, domain.TierNonStop, rec.Tier)
	assert.Len(t, rec.Ranked, 2)
}

func TestRetryPolicy_BackoffDoublesUpToCap(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 300*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 300*time.Millisecond, p.Backoff(4))
}

func TestMatchTier(t *testing.T) {
	offered := domain.Tiers()
	for choice, want := range map[string]domain.Tier{
		"standard":           domain.TierStandard,
		"Non-Stop":           domain.TierNonStop,
		"Double Fun Package": domain.TierDoubleFun,
	} {
		got, ok := MatchTier(choice, offered)
		assert.True(t, ok, choice)
		assert.Equal(t, want, got, choice)
	}
	_, ok := MatchTier("gold", offered)
	assert.False(t, ok)
}
