// Package pricing decides upgrade eligibility and computes tier prices.
// Everything here is pure: no I/O, no clocks, no caching.
package pricing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

// Rule names an eligibility rule. Rules are evaluated in declaration order.
type Rule string

const (
	RuleTicketActive  Rule = "ticket_active"
	RuleDifferentTier Rule = "different_tier"
	RuleKnownTier     Rule = "known_tier"
	RuleNoOpenOrder   Rule = "no_open_order"
	RuleUpgradePath   Rule = "upgrade_path"
	RuleEventUpcoming Rule = "event_upcoming"
)

// Config holds the calendar adjustment settings.
type Config struct {
	Currency            string
	WeekendMultiplierBP int64
	WeekendDays         []time.Weekday
	QuoteDays           int
	// MinLeadDays is the notice an upgrade date needs, counted from today.
	MinLeadDays   int
	BlackoutDates []time.Time
}

// DefaultConfig is a +20% weekend premium on Saturdays and Sundays over a
// 7-day window, with two days of notice and no blackout dates.
func DefaultConfig() Config {
	return Config{
		Currency:            "USD",
		WeekendMultiplierBP: 12000,
		WeekendDays:         []time.Weekday{time.Saturday, time.Sunday},
		QuoteDays:           7,
		MinLeadDays:         2,
	}
}

// Availability reasons.
const (
	ReasonAvailable  = "upgrades available"
	ReasonPastDate   = "past date"
	ReasonShortLead  = "upgrades need at least %d days notice"
	ReasonAfterEvent = "after the event date"
	ReasonBlackout   = "blackout date"
)

// Facts are the inputs the engine needs about a ticket.
type Facts struct {
	Ticket       domain.Ticket
	HasOpenOrder bool
}

// Quote is a derived, never-persisted price for one tier on one date.
type Quote struct {
	Tier          domain.Tier  `json:"tier"`
	BasePrice     domain.Money `json:"base_price"`
	MultiplierBP  int64        `json:"multiplier_bp"`
	Multiplier    string       `json:"multiplier"`
	AdjustedDelta domain.Money `json:"price_delta"`
	OriginalPrice domain.Money `json:"original_price"`
	Total         domain.Money `json:"total"`
	Currency      string       `json:"currency"`
	Weekend       bool         `json:"weekend"`
	ValidFrom     time.Time    `json:"valid_from"`
	ValidUntil    time.Time    `json:"valid_until"`
}

// Verdict is the eligibility outcome for one tier.
type Verdict struct {
	Tier     domain.Tier `json:"tier"`
	Eligible bool        `json:"eligible"`
	Rule     Rule        `json:"rule,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	Quote    *Quote      `json:"quote,omitempty"`
}

// TierQuote pairs a catalog entry with its verdict and price.
type TierQuote struct {
	Info     domain.TierInfo `json:"info"`
	Eligible bool            `json:"eligible"`
	Rule     Rule            `json:"rule,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Quote    Quote           `json:"quote"`
}

// CalendarDay is one day of the forward availability window.
type CalendarDay struct {
	Date         time.Time   `json:"date"`
	Weekday      string      `json:"weekday"`
	Weekend      bool        `json:"weekend"`
	MultiplierBP int64       `json:"multiplier_bp"`
	Available    bool        `json:"available"`
	Reason       string      `json:"reason"`
	Tiers        []TierQuote `json:"tiers"`
}

// DatedQuote is the price of one tier on an available day.
type DatedQuote struct {
	Date    time.Time `json:"date"`
	Weekday string    `json:"weekday"`
	Quote   Quote     `json:"quote"`
}

// Engine evaluates eligibility and prices.
type Engine struct {
	cfg      Config
	weekend  map[time.Weekday]bool
	blackout map[string]bool
}

// NewEngine builds an engine, filling zero values from DefaultConfig.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = def.Currency
	}
	if cfg.WeekendMultiplierBP <= 0 {
		cfg.WeekendMultiplierBP = def.WeekendMultiplierBP
	}
	if len(cfg.WeekendDays) == 0 {
		cfg.WeekendDays = def.WeekendDays
	}
	if cfg.QuoteDays <= 0 {
		cfg.QuoteDays = def.QuoteDays
	}
	if cfg.MinLeadDays < 0 {
		cfg.MinLeadDays = 0
	}
	weekend := make(map[time.Weekday]bool, len(cfg.WeekendDays))
	for _, d := range cfg.WeekendDays {
		weekend[d] = true
	}
	blackout := make(map[string]bool, len(cfg.BlackoutDates))
	for _, d := range cfg.BlackoutDates {
		blackout[d.Format(dayKey)] = true
	}
	return &Engine{cfg: cfg, weekend: weekend, blackout: blackout}
}

const dayKey = "2006-01-02"

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// IsWeekend reports whether date falls on a configured weekend day.
func (e *Engine) IsWeekend(date time.Time) bool {
	return e.weekend[date.Weekday()]
}

// MultiplierFor returns the calendar multiplier for date in basis points.
func (e *Engine) MultiplierFor(date time.Time) int64 {
	if e.IsWeekend(date) {
		return e.cfg.WeekendMultiplierBP
	}
	return domain.BasisPointsOne
}

// Quote prices tier for the ticket on date. Redundant or downgrade tiers price at zero delta.
func (e *Engine) Quote(ticket domain.Ticket, tier domain.Tier, date time.Time) (Quote, error) {
	info, ok := domain.LookupTier(tier)
	if !ok {
		return Quote{}, fmt.Errorf("unknown tier %q", tier)
	}
	credit, ok := domain.CategoryCredit(ticket.Category)
	if !ok {
		return Quote{}, fmt.Errorf("unknown ticket category %q", ticket.Category)
	}
	base := info.BasePrice.Sub(credit)
	if base < 0 {
		base = 0
	}
	bp := e.MultiplierFor(date)
	adjusted, err := base.MulBasisPoints(bp)
	if err != nil {
		return Quote{}, err
	}
	total := ticket.OriginalPrice.Add(adjusted)
	if total < ticket.OriginalPrice {
		return Quote{}, fmt.Errorf("total for %s: %w", tier, domain.ErrAmountOutOfRange)
	}
	from := startOfDay(date)
	return Quote{
		Tier:          tier,
		BasePrice:     base,
		MultiplierBP:  bp,
		Multiplier:    formatBasisPoints(bp),
		AdjustedDelta: adjusted,
		OriginalPrice: ticket.OriginalPrice,
		Total:         total,
		Currency:      e.cfg.Currency,
		Weekend:       e.IsWeekend(date),
		ValidFrom:     from,
		ValidUntil:    from.AddDate(0, 0, 1),
	}, nil
}

// Evaluate applies the eligibility rules in order; the first failing rule wins.
func (e *Engine) Evaluate(facts Facts, tier domain.Tier, date time.Time) Verdict {
	ticket := facts.Ticket
	v := Verdict{Tier: tier}
	fail := func(rule Rule, reason string) Verdict {
		v.Rule = rule
		v.Reason = reason
		return v
	}

	if !ticket.IsActive() {
		return fail(RuleTicketActive, fmt.Sprintf("ticket is %s; only active tickets can be upgraded", ticket.Status))
	}
	if ticket.CurrentTier() == tier {
		return fail(RuleDifferentTier, fmt.Sprintf("ticket is already %s", tierName(tier)))
	}
	if _, ok := domain.LookupTier(tier); !ok {
		return fail(RuleKnownTier, fmt.Sprintf("%q is not an upgrade tier; choose Standard, Non-Stop or Double Fun", tier))
	}
	if facts.HasOpenOrder {
		return fail(RuleNoOpenOrder, "an upgrade is already in progress for this ticket")
	}
	quote, err := e.Quote(ticket, tier, date)
	if err != nil || !quote.BasePrice.IsPositive() {
		return fail(RuleUpgradePath, fmt.Sprintf("no upgrade path from a %s ticket to %s", ticket.Category, tierName(tier)))
	}
	if !ticket.EventDate.IsZero() && startOfDay(ticket.EventDate).Before(startOfDay(date)) {
		return fail(RuleEventUpcoming, "the event has already taken place")
	}

	v.Eligible = true
	v.Quote = &quote
	return v
}

// CompareTiers evaluates all three tiers and always returns them in catalog order.
func (e *Engine) CompareTiers(facts Facts, date time.Time) []TierQuote {
	out := make([]TierQuote, 0, 3)
	for _, info := range domain.Catalog() {
		verdict := e.Evaluate(facts, info.Tier, date)
		tq := TierQuote{Info: info, Eligible: verdict.Eligible, Rule: verdict.Rule, Reason: verdict.Reason}
		if verdict.Quote != nil {
			tq.Quote = *verdict.Quote
		} else if q, err := e.Quote(facts.Ticket, info.Tier, date); err == nil {
			tq.Quote = q
		}
		out = append(out, tq)
	}
	return out
}

// Availability reports whether upgrades can be booked for date, as seen on
// today, for an event on eventDate (zero when unknown).
func (e *Engine) Availability(date, today, eventDate time.Time) (bool, string) {
	day := startOfDay(date)
	first := startOfDay(today)
	switch {
	case day.Before(first):
		return false, ReasonPastDate
	case day.Before(first.AddDate(0, 0, e.cfg.MinLeadDays)):
		return false, fmt.Sprintf(ReasonShortLead, e.cfg.MinLeadDays)
	case !eventDate.IsZero() && day.After(startOfDay(eventDate)):
		return false, ReasonAfterEvent
	case e.blackout[day.Format(dayKey)]:
		return false, ReasonBlackout
	}
	return true, ReasonAvailable
}

// Calendar returns the forward window starting at from, one entry per day,
// with availability judged as of today.
func (e *Engine) Calendar(facts Facts, today, from time.Time) []CalendarDay {
	start := startOfDay(from)
	days := make([]CalendarDay, 0, e.cfg.QuoteDays)
	for i := 0; i < e.cfg.QuoteDays; i++ {
		date := start.AddDate(0, 0, i)
		available, reason := e.Availability(date, today, facts.Ticket.EventDate)
		days = append(days, CalendarDay{
			Date:         date,
			Weekday:      date.Weekday().String(),
			Weekend:      e.IsWeekend(date),
			MultiplierBP: e.MultiplierFor(date),
			Available:    available,
			Reason:       reason,
			Tiers:        e.CompareTiers(facts, date),
		})
	}
	return days
}

// BestDates scans days days from today and returns up to limit available
// dates on which tier is eligible, cheapest first. Equal prices keep date order.
func (e *Engine) BestDates(facts Facts, tier domain.Tier, today time.Time, days, limit int) []DatedQuote {
	start := startOfDay(today)
	var out []DatedQuote
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		if ok, _ := e.Availability(date, today, facts.Ticket.EventDate); !ok {
			continue
		}
		v := e.Evaluate(facts, tier, date)
		if !v.Eligible {
			continue
		}
		out = append(out, DatedQuote{Date: date, Weekday: date.Weekday().String(), Quote: *v.Quote})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Quote.Total < out[j].Quote.Total })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// EligibleTiers returns the eligible tiers of a comparison in catalog order.
func EligibleTiers(quotes []TierQuote) []domain.Tier {
	out := make([]domain.Tier, 0, len(quotes))
	for _, q := range quotes {
		if q.Eligible {
			out = append(out, q.Info.Tier)
		}
	}
	return out
}

// ParseWeekdays parses names such as "saturday,sunday".
func ParseWeekdays(csv string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, part := range strings.Split(csv, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			if strings.ToLower(d.String()) == name || strings.ToLower(d.String()[:3]) == name {
				out = append(out, d)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
	}
	return out, nil
}

// ParseDates parses YYYY-MM-DD dates.
func ParseDates(values []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		d, err := time.Parse(dayKey, strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", v, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func tierName(t domain.Tier) string {
	if info, ok := domain.LookupTier(t); ok {
		return info.Name
	}
	return string(t)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func formatBasisPoints(bp int64) string {
	return fmt.Sprintf("%d.%02d", bp/domain.BasisPointsOne, (bp%domain.BasisPointsOne)/100)
}
