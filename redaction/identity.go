package redaction

import (
	"regexp"
	"strings"
)

// IdentityRules expands each configured patient name into the variants a
// record is likely to contain. For "Wing L Ho":
//
//	Wing L Ho, Wing L. Ho   full name, middle initial period optional
//	Ho, Wing L.             last-comma-first with middle
//	Ho, Wing                last-comma-first
//	Wing Ho                 first + last
//	Wing                    first name alone
//
// Matching is case-insensitive and whitespace-tolerant. Longer variants get
// higher priorities so "Wing L Ho" is replaced whole before "Wing" alone.
// Patterns carry no \b anchors; the engine checks Unicode word boundaries
// around every identity match instead.
func IdentityRules(names []string) []Rule {
	var rules []Rule
	seen := make(map[string]bool)

	add := func(name, pattern string, priority int) {
		if seen[pattern] {
			return
		}
		seen[pattern] = true
		rules = append(rules, Rule{
			Name:            name,
			Pattern:         pattern,
			Placeholder:     PlaceholderPatientName,
			Priority:        priority,
			CaseInsensitive: true,
			Class:           ClassIdentity,
		})
	}

	for _, raw := range names {
		tokens := nameTokens(raw)
		if len(tokens) == 0 {
			continue
		}
		first := regexp.QuoteMeta(tokens[0])
		key := strings.ToLower(strings.Join(tokens, "_"))

		if len(tokens) == 1 {
			add("identity_first:"+key, first, PriorityIdentityFirst)
			continue
		}

		last := regexp.QuoteMeta(tokens[len(tokens)-1])
		middles := tokens[1 : len(tokens)-1]

		if len(middles) > 0 {
			parts := []string{first}
			for _, m := range middles {
				parts = append(parts, middlePattern(m))
			}
			parts = append(parts, last)
			add("identity_full:"+key, strings.Join(parts, `\s+`), PriorityIdentityFull)
			add("identity_last_first_middle:"+key,
				last+`,\s*`+first+`\s+`+middlePattern(middles[0]), PriorityIdentityLastFirstMiddle)
		}

		add("identity_last_first:"+key, last+`,\s*`+first, PriorityIdentityLastFirst)
		add("identity_first_last:"+key, first+`\s+`+last, PriorityIdentityFirstLast)
		add("identity_first:"+key, first, PriorityIdentityFirst)
	}
	return rules
}

// middlePattern matches a middle name or its initial, with or without a
// trailing period.
func middlePattern(m string) string {
	runes := []rune(m)
	initial := regexp.QuoteMeta(string(runes[:1])) + `\.?`
	if len(runes) == 1 {
		return initial
	}
	return `(?:` + regexp.QuoteMeta(m) + `|` + initial + `)`
}

// nameTokens splits a configured name, dropping trailing periods from
// initials ("L." -> "L").
func nameTokens(raw string) []string {
	var tokens []string
	for _, f := range strings.Fields(raw) {
		f = strings.TrimRight(f, ".,")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
