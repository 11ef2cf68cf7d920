package redaction

// Priorities of the built-in generic rules. Identity rules sit above all of
// them; user rules without a priority land below.
const (
	PriorityIdentityFull            = 1000
	PriorityIdentityLastFirstMiddle = 995
	PriorityIdentityLastFirst       = 990
	PriorityIdentityFirstLast       = 980
	PriorityIdentityFirst           = 970
)

const (
	monthName = `(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\.?`
	numDate   = `\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}`
	textDate  = `(?i:` + monthName + `)\s+\d{1,2},?\s+\d{4}`
	nameWord  = `[A-Z][a-z]+(?:['-][A-Za-z][a-z]+)?`
	initial   = `[A-Z]\b\.?`
	dobLabel  = `(?i:\b(?:DOB|D\.O\.B\.?|Date\s+of\s+Birth|Birth\s*Date))\s*[:#]?\s*`
)

// DefaultRules returns the generic rule set, most specific shape first and
// the capitalized-name heuristics last.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "email",
			Pattern:     `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`,
			Placeholder: PlaceholderEmail,
			Priority:    900,
		},
		{
			Name:        "ssn",
			Pattern:     `\b\d{3}-\d{2}-\d{4}\b`,
			Placeholder: PlaceholderSSN,
			Priority:    880,
		},
		{
			Name:        "ssn_compact",
			Pattern:     `\b\d{9}\b`,
			Placeholder: PlaceholderSSN,
			Priority:    870,
		},
		{
			Name:        "mrn",
			Pattern:     `(?i:\bMRN|\bMR\s*#|\bPatient\s+ID|\bMedical\s+Record(?:\s+(?:Number|No\.?|#))?)\s*[:#]?\s*(?P<value>[A-Z]{0,4}-?\d[\dA-Z-]{3,})`,
			Placeholder: PlaceholderMRN,
			Priority:    860,
		},
		{
			Name:        "account",
			Pattern:     `(?i:\b(?:Account|Acct)(?:\s*(?:Number|No\.?|#))?)\s*[:#]?\s*(?P<value>\d[\d-]{4,}\d)`,
			Placeholder: PlaceholderAccount,
			Priority:    850,
		},
		{
			Name:        "dob",
			Pattern:     dobLabel + `(?P<value>` + numDate + `)`,
			Placeholder: PlaceholderDOB,
			Priority:    840,
		},
		{
			Name:        "dob_text",
			Pattern:     dobLabel + `(?P<value>` + textDate + `)`,
			Placeholder: PlaceholderDOB,
			Priority:    835,
		},
		{
			Name:        "born",
			Pattern:     `(?i:\bborn(?:\s+on)?)\s+(?P<value>` + textDate + `|` + numDate + `)`,
			Placeholder: PlaceholderDOB,
			Priority:    830,
		},
		{
			Name:        "license",
			Pattern:     `(?i:\b(?:Driver'?s?\s+License|DL|Lic(?:ense)?)(?:\s*(?:Number|No\.?|#))?)\s*[:#]?\s*(?P<value>[A-Z]{0,2}\d{5,12})\b`,
			Placeholder: PlaceholderLicense,
			Priority:    820,
		},
		{
			Name:        "credit_card",
			Pattern:     `\b(?:\d{4}[ -]?){3}\d{4}\b|\b3[47]\d{2}[ -]?\d{6}[ -]?\d{5}\b`,
			Placeholder: PlaceholderCreditCard,
			Priority:    810,
		},
		{
			Name:        "phone_intl",
			Pattern:     `\+1[-. ]?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`,
			Placeholder: PlaceholderPhone,
			Priority:    800,
		},
		{
			Name:        "phone_paren",
			Pattern:     `\(\d{3}\)\s*\d{3}[-. ]\d{4}\b`,
			Placeholder: PlaceholderPhone,
			Priority:    795,
		},
		{
			Name:        "phone",
			Pattern:     `\b\d{3}[-. ]\d{3}[-. ]\d{4}\b`,
			Placeholder: PlaceholderPhone,
			Priority:    790,
		},
		{
			Name:        "phone_compact",
			Pattern:     `\b\d{10}\b`,
			Placeholder: PlaceholderPhone,
			Priority:    785,
		},
		{
			Name: "address",
			Pattern: `\b\d{1,6}[ \t]+(?:` + nameWord + `\.?[ \t]+){1,3}` +
				`(?i:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way|Place|Pl|Terrace|Circle|Cir|Parkway|Pkwy|Highway|Hwy)\b\.?` +
				`(?:,?[ \t]*(?i:Apt|Suite|Ste|Unit|#)\.?[ \t]*[A-Za-z0-9-]+)?`,
			Placeholder: PlaceholderAddress,
			Priority:    770,
		},
		{
			Name:        "zip",
			Pattern:     `(?:^|[^-\w])(?P<value>\d{5}(?:-\d{4})?)\b`,
			Placeholder: PlaceholderZIP,
			Priority:    760,
		},
		{
			Name:        "name_title",
			Pattern:     `\b(?:Mr|Mrs|Ms|Miss|Dr)\.?[ \t]+(?P<value>` + nameWord + `(?:[ \t]+` + initial + `)?(?:[ \t]+` + nameWord + `)?)`,
			Placeholder: PlaceholderName,
			Priority:    750,
		},
		{
			Name: "name_label",
			Pattern: `(?i:\b(?:Patient\s+Name|Patient|Name))[ \t]*:[ \t]*(?P<value>` +
				nameWord + `,[ \t]*` + nameWord + `|` +
				nameWord + `(?:[ \t]+` + initial + `)?(?:[ \t]+` + nameWord + `){1,2})`,
			Placeholder: PlaceholderName,
			Priority:    740,
		},
		{
			Name:        "name_first_last",
			Pattern:     `(?i:\b(?:First|Last|Given|Family)\s+Name)[ \t]*[:#]?[ \t]*(?P<value>` + nameWord + `)`,
			Placeholder: PlaceholderName,
			Priority:    735,
		},
	}
}
