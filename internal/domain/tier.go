package domain

import "strings"

// Tier is one of the three fixed upgrade levels.
type Tier string

const (
	TierStandard  Tier = "standard"
	TierNonStop   Tier = "non-stop"
	TierDoubleFun Tier = "double-fun"
)

// TierInfo describes a catalog entry.
type TierInfo struct {
	Tier        Tier     `json:"tier"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	// Keywords feed the router's descriptor stage.
	Keywords  []string `json:"-"`
	BasePrice Money    `json:"base_price"`
}

// catalog order is Standard, Non-Stop, Double Fun and never changes.
var catalog = []TierInfo{
	{
		Tier:        TierStandard,
		Name:        "Standard",
		DisplayName: "Standard Upgrade",
		Description: "Enhanced experience with priority seating and complimentary refreshments",
		Features:    []string{"Priority seating", "Complimentary drinks", "Fast-track entry"},
		Keywords:    []string{"priority seating", "complimentary", "drinks", "refreshments", "fast-track", "fast track"},
		BasePrice:   NewMoney(25, 0),
	},
	{
		Tier:        TierNonStop,
		Name:        "Non-Stop",
		DisplayName: "Non-Stop Experience",
		Description: "Premium experience with exclusive access and premium amenities",
		Features:    []string{"VIP lounge access", "Premium seating", "Exclusive merchandise", "Meet & greet"},
		Keywords:    []string{"lounge", "premium seating", "merchandise", "meet & greet", "meet and greet"},
		BasePrice:   NewMoney(50, 0),
	},
	{
		Tier:        TierDoubleFun,
		Name:        "Double Fun",
		DisplayName: "Double Fun Package",
		Description: "Ultimate experience with all premium features and exclusive perks",
		Features:    []string{"All Non-Stop features", "Backstage access", "Photo opportunities", "Premium gift package"},
		Keywords:    []string{"backstage", "photo", "gift", "ultimate"},
		BasePrice:   NewMoney(75, 0),
	},
}

// Catalog returns a copy of the tier catalog in fixed order.
func Catalog() []TierInfo {
	out := make([]TierInfo, len(catalog))
	copy(out, catalog)
	return out
}

// Tiers returns the tier identifiers in catalog order.
func Tiers() []Tier {
	out := make([]Tier, 0, len(catalog))
	for _, info := range catalog {
		out = append(out, info.Tier)
	}
	return out
}

// LookupTier returns the catalog entry for t.
func LookupTier(t Tier) (TierInfo, bool) {
	for _, info := range catalog {
		if info.Tier == t {
			return info, true
		}
	}
	return TierInfo{}, false
}

// CatalogIndex returns the position of t in the catalog, or -1.
func CatalogIndex(t Tier) int {
	for i, info := range catalog {
		if info.Tier == t {
			return i
		}
	}
	return -1
}

// ParseTier normalizes identifiers and display names ("Non Stop", "double_fun", "Double Fun").
func ParseTier(s string) (Tier, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	if norm == "nonstop" {
		norm = string(TierNonStop)
	}
	for _, info := range catalog {
		if string(info.Tier) == norm {
			return info.Tier, true
		}
	}
	return "", false
}

// categoryCredit is the value already paid for, relative to the tier base prices.
var categoryCredit = map[TicketCategory]Money{
	TicketCategoryGeneral:  NewMoney(0, 0),
	TicketCategoryStandard: NewMoney(25, 0),
	TicketCategoryVIP:      NewMoney(50, 0),
	TicketCategoryPremium:  NewMoney(100, 0),
}

// CategoryCredit returns the credit for c and whether c is known.
func CategoryCredit(c TicketCategory) (Money, bool) {
	m, ok := categoryCredit[c]
	return m, ok
}
