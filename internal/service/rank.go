package service

import (
	"fmt"
	"sort"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
	"github.com/spec-kit/ticket-upgrade-agent/internal/pricing"
)

// Preferences are optional customer signals used for ranking.
type Preferences struct {
	BudgetCeiling *domain.Money `json:"budget_ceiling,omitempty"`
}

// RankedTier is one scored entry.
type RankedTier struct {
	Tier  domain.Tier `json:"tier"`
	Score int64       `json:"score"`
}

// Recommendation is the top-ranked eligible tier and why.
type Recommendation struct {
	Tier   domain.Tier  `json:"tier"`
	Reason string       `json:"reason"`
	Ranked []RankedTier `json:"ranked"`
}

const withinBudgetBonus = 1_000_000_000

// Rank scores eligible tiers against prefs. Tiers whose adjusted delta fits the
// budget outrank every tier that does not, and among them higher tiers win;
// over budget, cheaper wins. Without a budget there is no signal and Rank
// returns nil.
func Rank(quotes []pricing.TierQuote, prefs Preferences) *Recommendation {
	if prefs.BudgetCeiling == nil {
		return nil
	}
	budget := *prefs.BudgetCeiling

	ranked := make([]RankedTier, 0, len(quotes))
	for _, q := range quotes {
		if !q.Eligible {
			continue
		}
		var score int64
		if q.Quote.AdjustedDelta <= budget {
			score = withinBudgetBonus + int64(domain.CatalogIndex(q.Info.Tier))
		} else {
			score = -q.Quote.AdjustedDelta.Minor()
		}
		ranked = append(ranked, RankedTier{Tier: q.Info.Tier, Score: score})
	}
	if len(ranked) == 0 {
		return nil
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	top := ranked[0]
	info, _ := domain.LookupTier(top.Tier)
	reason := fmt.Sprintf("%s is the highest tier within your budget of %s", info.Name, budget)
	if top.Score < withinBudgetBonus {
		reason = fmt.Sprintf("no tier fits your budget of %s; %s is the most affordable option", budget, info.Name)
	}
	return &Recommendation{Tier: top.Tier, Reason: reason, Ranked: ranked}
}
