package redaction

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(names ...string) *Engine {
	return NewEngine(BuildRules(names, nil), nil)
}

func TestRedact_EndToEndSample(t *testing.T) {
	engine := newTestEngine("Wing L Ho")

	res := engine.Redact("Patient: Wing L Ho, DOB: 01/02/1970, SSN: 123-45-6789, phone 555-123-4567")

	assert.Equal(t, "Patient: [PATIENT NAME], DOB: [DOB], SSN: [SSN], phone [PHONE]", res.Text)
	assert.Equal(t, 4, res.Total())
	assert.Equal(t, 1, res.Matches["ssn"])
	assert.Equal(t, 1, res.Matches["dob"])
}

func TestRedact_IdentityVariants(t *testing.T) {
	engine := newTestEngine("Wing L Ho")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"full with period", "Wing L. Ho was seen", "[PATIENT NAME] was seen"},
		{"last comma first upper", "HO, WING L", "[PATIENT NAME]"},
		{"first last lower", "spoke with wing ho today", "spoke with [PATIENT NAME] today"},
		{"first alone", "Wing came back", "[PATIENT NAME] came back"},
		{"extra whitespace", "Wing   L\tHo", "[PATIENT NAME]"},
		{"word boundary respected", "Wingate clinic", "Wingate clinic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.RedactString(tt.input))
		})
	}
}

func TestRedact_IdentityExactMatchLeavesNoVariant(t *testing.T) {
	engine := newTestEngine("Wing L Ho")
	input := "Wing L Ho (Ho, Wing) aka Wing Ho; wing returned. WING L. HO signed."

	out := strings.ToLower(engine.RedactString(input))

	for _, variant := range []string{"wing l ho", "wing l. ho", "ho, wing", "wing ho", "wing"} {
		assert.NotContains(t, out, variant)
	}
	assert.Contains(t, out, strings.ToLower(PlaceholderPatientName))
}

func TestRedact_SSNShapes(t *testing.T) {
	engine := newTestEngine()

	for _, input := range []string{
		"SSN 123-45-6789 on file",
		"ssn: 123456789",
		"ids 987-65-4321 and 987654321",
	} {
		t.Run(input, func(t *testing.T) {
			out := engine.RedactString(input)
			assert.Contains(t, out, PlaceholderSSN)
			assert.NotRegexp(t, `\d{3}-\d{2}-\d{4}`, out)
			assert.NotRegexp(t, `\b\d{9}\b`, out)
		})
	}
}

func TestRedact_Idempotent(t *testing.T) {
	engine := newTestEngine("Wing L Ho")

	inputs := []string{
		"Patient: Wing L Ho, DOB: 01/02/1970, SSN: 123-45-6789, phone 555-123-4567",
		"Name: John Smith\nMRN: 00123456\nAccount #: 12345678901",
		"Dr. Jane Doe saw the patient at 123 Main Street, Springfield, IL 62704",
		"Email wing.ho@example.com or call (555) 123-4567 / +1 555 987 6543",
		"born on March 3, 1985; card 4111 1111 1111 1111; DL: D1234567",
		"12345 67890 11111",
		"Dr. Smith123456789",
		"Name: Jane Doe555-123-4567",
		"Wing555.123.4567 ZIP62704",
		"",
	}

	for _, input := range inputs {
		once := engine.RedactString(input)
		twice := engine.RedactString(once)
		assert.Equal(t, once, twice, "input: %q", input)
	}
}

func TestRedact_ExposedTextRedactedInOneCall(t *testing.T) {
	engine := newTestEngine()

	res := engine.Redact("Dr. Smith123456789")

	assert.Equal(t, "Dr. [NAME][SSN]", res.Text)
	assert.Equal(t, 1, res.Matches["name_title"])
	assert.Equal(t, 1, res.Matches["ssn_compact"])
}

func TestRedact_IdentityNonASCII(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		input string
		want  string
	}{
		{"first alone", []string{"José Núñez"}, "José returned", "[PATIENT NAME] returned"},
		{"last comma first", []string{"José Núñez"}, "Núñez, José called", "[PATIENT NAME] called"},
		{"full and first", []string{"Zoë Åberg"}, "Zoë Åberg was admitted; Zoë stable",
			"[PATIENT NAME] was admitted; [PATIENT NAME] stable"},
		{"case folded", []string{"Zoë Åberg"}, "ZOË ÅBERG", "[PATIENT NAME]"},
		{"letter after name", []string{"José Núñez"}, "Joséphine visited", "Joséphine visited"},
		{"letter before name", []string{"Zoë Åberg"}, "Kazoë met Zoë", "Kazoë met [PATIENT NAME]"},
		{"middle initial", []string{"Ana Ö Ruiz"}, "Ruiz, Ana Ö. seen", "[PATIENT NAME] seen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(tt.names...)
			assert.Equal(t, tt.want, engine.RedactString(tt.input))
		})
	}
}

func TestRedact_SpecificIdentityBeatsGenericName(t *testing.T) {
	withIdentity := newTestEngine("Wing Ho")
	assert.Equal(t, "Name: [PATIENT NAME]", withIdentity.RedactString("Name: Wing Ho"))

	generic := newTestEngine()
	assert.Equal(t, "Name: [NAME]", generic.RedactString("Name: Wing Ho"))
	assert.Equal(t, "Patient: [NAME], DOB: [DOB]", generic.RedactString("Patient: Wing L Ho, DOB: 01/02/1970"))
}

func TestRedact_GenericRules(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"email", "contact jane.doe@example.org today", "contact [EMAIL] today"},
		{"phone parens", "call (555) 123-4567", "call [PHONE]"},
		{"phone intl", "call +1 555 123 4567", "call [PHONE]"},
		{"phone dotted", "call 555.123.4567", "call [PHONE]"},
		{"phone compact", "call 5551234567", "call [PHONE]"},
		{"mrn keeps label", "MRN: 00123456", "MRN: [MRN]"},
		{"medical record number", "Medical Record Number: MR-778812", "Medical Record Number: [MRN]"},
		{"account", "Account #: 12345678901", "Account #: [ACCOUNT]"},
		{"dob numeric", "DOB 3/4/85", "DOB [DOB]"},
		{"dob text", "Date of Birth: March 3, 1985", "Date of Birth: [DOB]"},
		{"born", "born on 01/02/1970", "born on [DOB]"},
		{"license", "Driver's License: D1234567", "Driver's License: [LICENSE]"},
		{"credit card", "card 4111 1111 1111 1111", "card [CREDIT CARD]"},
		{"address and zip", "lives at 123 Main Street, Springfield, IL 62704", "lives at [ADDRESS], Springfield, IL [ZIP]"},
		{"zip plus four", "zip 02134-1234", "zip [ZIP]"},
		{"zip after hyphen untouched", "ref A-12345", "ref A-12345"},
		{"title name", "seen by Dr. Smith today", "seen by Dr. [NAME] today"},
		{"last comma first label", "Patient Name: Smith, John", "Patient Name: [NAME]"},
		{"patient id", "Patient ID: 1234567", "Patient ID: [MRN]"},
		{"first name field", "First Name: John", "First Name: [NAME]"},
		{"last name field", "Last Name: Smith", "Last Name: [NAME]"},
		{"first name field two words", "First Name: John Smith", "First Name: [NAME]"},
		{"clinical text untouched", "Hemoglobin A1c 6.1 % within range", "Hemoglobin A1c 6.1 % within range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.RedactString(tt.input))
		})
	}
}

func TestRedact_PlaceholdersNeverRematched(t *testing.T) {
	rules := []Rule{
		{Name: "digits", Pattern: `\d+`, Placeholder: "[NUM 1]", Priority: 10},
		{Name: "caps", Pattern: `[A-Z]+`, Placeholder: "[X]", Priority: 5},
	}
	engine := NewEngine(rules, nil)

	res := engine.Redact("abc 42 DEF")

	assert.Equal(t, "abc [NUM 1] [X]", res.Text)
	assert.Equal(t, 1, res.Matches["caps"])
}

func TestNewEngine_SkipsBadRules(t *testing.T) {
	rules := []Rule{
		{Name: "broken", Pattern: `(unclosed`, Placeholder: "[X]", Priority: 10},
		{Name: "empty", Pattern: "  ", Placeholder: "[X]", Priority: 10},
		{Name: "no_placeholder", Pattern: `x`, Priority: 10},
		{Name: "matches_nothing_required", Pattern: `a*`, Placeholder: "[X]", Priority: 10},
		{Name: "ok", Pattern: `secret`, Placeholder: "[S]", Priority: 1},
	}

	engine := NewEngine(rules, nil)

	skipped := engine.Skipped()
	require.Len(t, skipped, 4)
	assert.Equal(t, "broken", skipped[0].Rule)
	assert.Error(t, skipped[0].Unwrap())
	assert.Len(t, engine.Rules(), 1)
	assert.Equal(t, "a [S] b", engine.RedactString("a secret b"))
}

func TestNewEngine_PriorityOrder(t *testing.T) {
	engine := NewEngine(BuildRules([]string{"Wing L Ho"}, nil), nil)

	rules := engine.Rules()
	require.NotEmpty(t, rules)
	assert.Equal(t, ClassIdentity, rules[0].Class)
	assert.Equal(t, "name_first_last", rules[len(rules)-1].Name)
	for i := 1; i < len(rules); i++ {
		assert.GreaterOrEqual(t, rules[i-1].Priority, rules[i].Priority)
	}
	assert.Contains(t, engine.Placeholders(), PlaceholderPatientName)
}

func TestEngine_ConcurrentUse(t *testing.T) {
	engine := newTestEngine("Wing L Ho")
	const input = "Patient: Wing L Ho, SSN: 123-45-6789"

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "Patient: [PATIENT NAME], SSN: [SSN]", engine.RedactString(input))
		}()
	}
	wg.Wait()
}
