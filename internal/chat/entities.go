package chat

import (
	"regexp"
	"strings"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

var (
	uuidPattern         = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	ticketNumberPattern = regexp.MustCompile(`(?i)\bTKT-[0-9A-Z]{4,}\b`)
	// a reference introduced by "ticket", "id", "number" or "#", e.g. "ticket 333", "my ticket id is 4821"
	labelledRefPattern = regexp.MustCompile(`(?i)(?:\bticket\b|\bid\b|\bnumber\b|#)[\s:#]*(?:(?:id|number|no|is)\b[\s:#.]*)*([a-z0-9][a-z0-9-]{2,63})`)
	budgetPattern      = regexp.MustCompile(`(?i)(?:budget(?:\s+is|\s+of)?|under|below|less than|at most|up to|max(?:imum)?)\s*(?:of\s*)?\$?\s*(\d{1,6}(?:\.\d{1,2})?)`)
)

// ExtractTicketID finds a ticket reference in message, or failing that in
// the customer's earlier turns, newest first.
func ExtractTicketID(message string, history []domain.Message) (string, bool) {
	if ref, ok := ticketRefIn(message); ok {
		return ref, true
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != domain.RoleUser {
			continue
		}
		if ref, ok := ticketRefIn(history[i].Text); ok {
			return ref, true
		}
	}
	return "", false
}

func ticketRefIn(text string) (string, bool) {
	if m := uuidPattern.FindString(text); m != "" {
		return strings.ToLower(m), true
	}
	if m := ticketNumberPattern.FindString(text); m != "" {
		return strings.ToUpper(m), true
	}
	for _, m := range labelledRefPattern.FindAllStringSubmatch(text, -1) {
		if strings.ContainsAny(m[1], "0123456789") {
			return strings.ToUpper(m[1]), true
		}
	}
	return "", false
}

// tierSynonyms maps customer phrasing onto tiers. Order matters: the first
// phrase found wins.
var tierSynonyms = []struct {
	phrase string
	tier   domain.Tier
}{
	{"seat upgrade", domain.TierStandard},
	{"priority seating", domain.TierStandard},
	{"basic upgrade", domain.TierStandard},
	{"vip lounge", domain.TierNonStop},
	{"premium experience", domain.TierNonStop},
	{"nonstop", domain.TierNonStop},
	{"non stop", domain.TierNonStop},
	{"vip package", domain.TierDoubleFun},
	{"all access", domain.TierDoubleFun},
	{"backstage pass", domain.TierDoubleFun},
	{"double-fun", domain.TierDoubleFun},
}

// ExtractTier resolves a tier mentioned in message: exact tier names first,
// then the synonym table, then descriptor keywords. Within a stage the
// catalog order breaks ties.
func ExtractTier(message string) (domain.Tier, bool) {
	text := strings.ToLower(message)
	catalog := domain.Catalog()

	for _, info := range catalog {
		if containsPhrase(text, strings.ToLower(info.DisplayName)) || containsPhrase(text, strings.ToLower(info.Name)) {
			return info.Tier, true
		}
	}
	for _, syn := range tierSynonyms {
		if containsPhrase(text, syn.phrase) {
			return syn.tier, true
		}
	}
	for _, info := range catalog {
		for _, kw := range info.Keywords {
			if containsPhrase(text, kw) {
				return info.Tier, true
			}
		}
	}
	return "", false
}

// ExtractBudget finds a stated spending ceiling such as "under $60".
func ExtractBudget(message string) (domain.Money, bool) {
	m := budgetPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	amount, err := domain.ParseMoney(m[1])
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}

// containsPhrase matches phrase on word boundaries.
func containsPhrase(text, phrase string) bool {
	for from := 0; ; {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(phrase)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		from = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}

// words splits text into lower-case word tokens.
func words(text string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	}) {
		out[w] = true
	}
	return out
}
