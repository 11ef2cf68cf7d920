package redaction

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"medextract/logging"
)

// Result is the sanitized text plus per-rule replacement counts. Counts are
// safe to log; the matched values are never kept.
type Result struct {
	Text    string
	Matches map[string]int
}

// Total returns the number of spans replaced across all rules.
func (r Result) Total() int {
	n := 0
	for _, c := range r.Matches {
		n += c
	}
	return n
}

type compiledRule struct {
	Rule
	re       *regexp.Regexp
	valueIdx int // submatch index of ValueGroup, 0 when absent
}

// span is a half-open byte range [start, end) in the current text.
type span struct {
	start, end int
}

// Engine applies an immutable, priority-sorted rule list. Safe for
// concurrent use.
type Engine struct {
	rules   []compiledRule
	protect *regexp.Regexp
	skipped []*RuleConfigError
	logger  *logging.Logger
}

// NewEngine compiles rules and sorts them by descending priority. Rules with
// an empty name, pattern or placeholder, or a pattern that does not compile,
// are skipped and reported through Skipped and the logger.
func NewEngine(rules []Rule, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{logger: logger.Named("redaction")}

	for _, r := range rules {
		cr, cfgErr := compileRule(r)
		if cfgErr != nil {
			e.skipped = append(e.skipped, cfgErr)
			e.logger.Warn("skipping redaction rule",
				zap.String("rule", cfgErr.Rule),
				zap.String("reason", cfgErr.Reason))
			continue
		}
		e.rules = append(e.rules, cr)
	}

	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority > e.rules[j].Priority
	})
	e.protect = placeholderPattern(e.rules)
	return e
}

func compileRule(r Rule) (compiledRule, *RuleConfigError) {
	name := r.Name
	if name == "" {
		name = "(unnamed)"
	}
	switch {
	case strings.TrimSpace(r.Name) == "":
		return compiledRule{}, &RuleConfigError{Rule: name, Reason: "empty name"}
	case strings.TrimSpace(r.Pattern) == "":
		return compiledRule{}, &RuleConfigError{Rule: name, Reason: "empty pattern"}
	case r.Placeholder == "":
		return compiledRule{}, &RuleConfigError{Rule: name, Reason: "empty placeholder"}
	}

	pattern := r.Pattern
	if r.CaseInsensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return compiledRule{}, &RuleConfigError{Rule: name, Reason: "pattern does not compile", Err: err}
	}
	if re.MatchString("") {
		return compiledRule{}, &RuleConfigError{Rule: name, Reason: "pattern matches the empty string"}
	}

	idx := re.SubexpIndex(ValueGroup)
	if idx < 0 {
		idx = 0
	}
	return compiledRule{Rule: r, re: re, valueIdx: idx}, nil
}

// placeholderPattern matches any placeholder an active rule can write.
// Longest first so overlapping alternatives resolve to the full token.
func placeholderPattern(rules []compiledRule) *regexp.Regexp {
	seen := make(map[string]bool)
	var tokens []string
	for _, r := range rules {
		if !seen[r.Placeholder] {
			seen[r.Placeholder] = true
			tokens = append(tokens, r.Placeholder)
		}
	}
	if len(tokens) == 0 {
		return nil
	}
	sort.Slice(tokens, func(i, j int) bool { return len(tokens[i]) > len(tokens[j]) })
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(strings.Join(quoted, "|"))
}

// maxPasses bounds how often Redact re-runs the rule list. A placeholder
// written late can expose text that an earlier rule now matches, e.g. the
// digits in "Dr. Smith123456789" once "Smith" is gone.
const maxPasses = 4

// Redact returns text with every rule applied in priority order. The rule
// list is repeated until a pass replaces nothing, so redacting the output
// again returns it unchanged. It never fails; text no rule matches is
// returned unchanged.
func (e *Engine) Redact(text string) Result {
	res := Result{Text: text, Matches: make(map[string]int)}
	if text == "" {
		return res
	}
	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for _, r := range e.rules {
			var n int
			res.Text, n = e.applyRule(res.Text, r)
			if n > 0 {
				res.Matches[r.Name] += n
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return res
}

// RedactString is Redact without the counts.
func (e *Engine) RedactString(text string) string {
	return e.Redact(text).Text
}

// applyRule runs one rule over the plain segments between placeholders and
// rewrites every match. Matches never span a placeholder. Identity matches
// must also sit on Unicode word boundaries, which RE2's ASCII-only \b
// cannot express for names like "José" or "Åberg".
func (e *Engine) applyRule(text string, r compiledRule) (string, int) {
	var spans []span
	segStart := 0
	scan := func(segEnd int) {
		if segEnd <= segStart {
			return
		}
		if r.Class == ClassIdentity {
			spans = append(spans, wordSpans(text, segStart, segEnd, r.re)...)
			return
		}
		seg := text[segStart:segEnd]
		for _, m := range r.re.FindAllStringSubmatchIndex(seg, -1) {
			s, t := m[0], m[1]
			if r.valueIdx > 0 && m[2*r.valueIdx] >= 0 {
				s, t = m[2*r.valueIdx], m[2*r.valueIdx+1]
			}
			if t > s {
				spans = append(spans, span{start: segStart + s, end: segStart + t})
			}
		}
	}

	if e.protect != nil {
		for _, p := range e.protect.FindAllStringIndex(text, -1) {
			scan(p[0])
			segStart = p[1]
		}
	}
	scan(len(text))

	if len(spans) == 0 {
		return text, 0
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, sp := range spans {
		b.WriteString(text[prev:sp.start])
		b.WriteString(r.Placeholder)
		prev = sp.end
	}
	b.WriteString(text[prev:])
	return b.String(), len(spans)
}

// wordSpans finds non-overlapping matches of re in text[start:end] whose
// neighbouring runes in text are not word runes. A rejected candidate
// restarts the search one rune later.
func wordSpans(text string, start, end int, re *regexp.Regexp) []span {
	var spans []span
	pos := start
	for pos < end {
		m := re.FindStringIndex(text[pos:end])
		if m == nil {
			break
		}
		s, t := pos+m[0], pos+m[1]
		if t > s && !wordRuneBefore(text, s) && !wordRuneAt(text, t) {
			spans = append(spans, span{start: s, end: t})
			pos = t
			continue
		}
		_, size := utf8.DecodeRuneInString(text[s:])
		pos = s + max(size, 1)
	}
	return spans
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func wordRuneBefore(text string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return isWordRune(r)
}

func wordRuneAt(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return isWordRune(r)
}

// Skipped lists rules dropped at construction.
func (e *Engine) Skipped() []*RuleConfigError {
	out := make([]*RuleConfigError, len(e.skipped))
	copy(out, e.skipped)
	return out
}

// Rules returns the active rules in application order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Rule
	}
	return out
}

// Placeholders returns every placeholder the engine can emit.
func (e *Engine) Placeholders() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range e.rules {
		if !seen[r.Placeholder] {
			seen[r.Placeholder] = true
			out = append(out, r.Placeholder)
		}
	}
	return out
}
