// Package redaction masks PII/PHI in extracted document text before it
// leaves the process.
//
// An Engine applies an ordered list of Rules. Identity rules built from the
// configured patient names run first, then generic pattern rules from the
// most specific shape (email, SSN) down to the broad capitalized-name
// heuristics. Each rule scans only text that is not already a placeholder,
// so a later rule can never rewrite an earlier rule's output and running
// the engine twice changes nothing.
//
// Usage:
//
//	engine := redaction.NewEngine(redaction.BuildRules([]string{"Wing L Ho"}, nil), logger)
//	res := engine.Redact(text)
//	// res.Text is safe to send; res.Matches holds per-rule counts
package redaction

import "fmt"

// Placeholders written in place of redacted spans.
const (
	PlaceholderPatientName = "[PATIENT NAME]"
	PlaceholderName        = "[NAME]"
	PlaceholderPhone       = "[PHONE]"
	PlaceholderSSN         = "[SSN]"
	PlaceholderEmail       = "[EMAIL]"
	PlaceholderMRN         = "[MRN]"
	PlaceholderAddress     = "[ADDRESS]"
	PlaceholderZIP         = "[ZIP]"
	PlaceholderDOB         = "[DOB]"
	PlaceholderAccount     = "[ACCOUNT]"
	PlaceholderCreditCard  = "[CREDIT CARD]"
	PlaceholderLicense     = "[LICENSE]"
)

// ValueGroup is the capture group name a pattern uses to limit replacement
// to part of its match. "DOB: 01/02/1970" keeps its label when the date sits
// in (?P<value>...).
const ValueGroup = "value"

// Class separates identity rules (specific patient) from generic ones.
type Class int

const (
	ClassGeneric Class = iota
	ClassIdentity
)

func (c Class) String() string {
	if c == ClassIdentity {
		return "identity"
	}
	return "generic"
}

// Rule is one (name, pattern, placeholder, priority) tuple. Higher Priority
// runs first; equal priorities keep their input order.
type Rule struct {
	Name            string `yaml:"name"`
	Pattern         string `yaml:"pattern"`
	Placeholder     string `yaml:"placeholder"`
	Priority        int    `yaml:"priority"`
	CaseInsensitive bool   `yaml:"case_insensitive"`
	Class           Class  `yaml:"-"`
}

// RuleConfigError reports a rule the engine skipped. It is never returned
// from Redact; the engine logs it and keeps going without that rule.
type RuleConfigError struct {
	Rule   string
	Reason string
	Err    error
}

func (e *RuleConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("redaction rule %q skipped: %s: %v", e.Rule, e.Reason, e.Err)
	}
	return fmt.Sprintf("redaction rule %q skipped: %s", e.Rule, e.Reason)
}

func (e *RuleConfigError) Unwrap() error {
	return e.Err
}
