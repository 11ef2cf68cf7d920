package record

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"medextract/extraction"
)

//go:embed schema.json
var schemaJSON string

// outputSchema is the contract every Record must satisfy once encoded.
var outputSchema = jsonschema.MustCompileString("record.schema.json", schemaJSON)

// SchemaJSON returns the JSON Schema of an encoded Record.
func SchemaJSON() string {
	return schemaJSON
}

// Field alias tables, most specific name first.
var (
	sexKeys    = []string{"sex", "gender"}
	ageKeys    = []string{"age"}
	raceKeys   = []string{"race", "ethnicity"}
	heightKeys = []string{"height"}
	weightKeys = []string{"weight"}

	dxDescriptionKeys = []string{"description", "condition", "diagnosis", "name", "problem", "text"}
	dxCodeKeys        = []string{"code", "icd_code", "icd10", "icd_10", "icd_10_code", "icd"}
	dxDateKeys        = []string{"date", "onset_date", "diagnosed_date", "date_diagnosed"}

	medNameKeys       = []string{"name", "medication", "medication_name", "drug", "text"}
	medDosageKeys     = []string{"dosage", "dose", "strength"}
	medFrequencyKeys  = []string{"frequency", "schedule", "sig"}
	medIndicationKeys = []string{"indication", "reason", "purpose"}

	labNameKeys   = []string{"test_name", "test", "name", "analyte", "lab", "text"}
	labValueKeys  = []string{"value", "result"}
	labUnitKeys   = []string{"unit", "units"}
	labRangeKeys  = []string{"reference_range", "ref_range", "range", "normal_range", "reference"}
	labStatusKeys = []string{"status", "abnormal_flag", "flag", "interpretation"}
	labDateKeys   = []string{"date", "collection_date", "collected"}

	vitalNameKeys  = []string{"parameter", "measurement_type", "name", "type", "vital", "text"}
	vitalValueKeys = []string{"value", "reading", "result"}
	vitalUnitKeys  = []string{"unit", "units"}
	vitalDateKeys  = []string{"date"}

	allergenKeys = []string{"allergen", "substance", "allergy", "name", "text"}
	reactionKeys = []string{"reaction", "reactions", "response"}

	findingCategoryKeys = []string{"category", "type"}
	findingTextKeys     = []string{"finding", "description", "note", "text"}
	findingDateKeys     = []string{"date"}
)

// placeholderValues are identifying values that mean "nothing recorded".
var placeholderValues = map[string]bool{
	"none":            true,
	"none documented": true,
	"none noted":      true,
	"not documented":  true,
	"n/a":             true,
}

// vitalNames prettifies common snake_case vital parameters.
var vitalNames = map[string]string{
	"blood_pressure":    "Blood Pressure",
	"heart_rate":        "Heart Rate",
	"pulse":             "Heart Rate",
	"temperature":       "Temperature",
	"respiratory_rate":  "Respiratory Rate",
	"o2_saturation":     "O2 Saturation",
	"oxygen_saturation": "O2 Saturation",
	"spo2":              "O2 Saturation",
	"weight_bmi":        "Weight/BMI",
	"bmi":               "BMI",
}

// Transform maps an untrusted extraction onto a Record. It never fails:
// unusable items are dropped and recorded in the returned Degradation, and
// a nil input yields an empty record.
func Transform(in *extraction.Intermediate) (rec *Record, deg *Degradation) {
	deg = &Degradation{}
	defer func() {
		if r := recover(); r != nil {
			rec = Empty()
			deg.ContractErrors = append(deg.ContractErrors, fmt.Sprintf("transform panic: %v", r))
		}
	}()

	rec = Empty()
	if in == nil {
		return rec, deg
	}
	deg.Unrecognized = append(deg.Unrecognized, in.Unrecognized...)

	rec.PatientInfo = PatientInfo{
		Sex:    field(in.PatientInfo, sexKeys),
		Age:    field(in.PatientInfo, ageKeys),
		Race:   field(in.PatientInfo, raceKeys),
		Height: field(in.PatientInfo, heightKeys),
		Weight: field(in.PatientInfo, weightKeys),
	}

	for _, item := range in.Diagnoses {
		desc, code := identifying(item, dxDescriptionKeys), identifying(item, dxCodeKeys)
		if desc == nil && code == nil {
			deg.drop(extraction.CategoryDiagnoses)
			continue
		}
		rec.Diagnoses = append(rec.Diagnoses, Diagnosis{
			Description: desc,
			Code:        code,
			Date:        field(item, dxDateKeys),
		})
	}

	for _, item := range in.Medications {
		name := identifying(item, medNameKeys)
		if name == nil {
			deg.drop(extraction.CategoryMedications)
			continue
		}
		rec.Medications = append(rec.Medications, Medication{
			Name:       name,
			Dosage:     field(item, medDosageKeys),
			Frequency:  field(item, medFrequencyKeys),
			Indication: field(item, medIndicationKeys),
		})
	}

	for _, item := range in.LabResults {
		name := identifying(item, labNameKeys)
		if name == nil {
			deg.drop(extraction.CategoryLabResults)
			continue
		}
		lab := LabResult{
			TestName:       name,
			Value:          field(item, labValueKeys),
			Unit:           field(item, labUnitKeys),
			ReferenceRange: field(item, labRangeKeys),
			Date:           field(item, labDateKeys),
		}
		lab.Status = labStatus(item, lab)
		if lab.Status == StatusUnknown {
			deg.UnknownStatuses++
		}
		rec.LabResults = append(rec.LabResults, lab)
	}

	for _, item := range in.VitalSigns {
		name := identifying(item, vitalNameKeys)
		if name == nil {
			deg.drop(extraction.CategoryVitalSigns)
			continue
		}
		pretty := PrettifyParameter(*name)
		rec.VitalSigns = append(rec.VitalSigns, VitalSign{
			Parameter: &pretty,
			Value:     field(item, vitalValueKeys),
			Unit:      field(item, vitalUnitKeys),
			Date:      field(item, vitalDateKeys),
		})
	}

	for _, item := range in.Allergies {
		allergen := identifying(item, allergenKeys)
		if allergen == nil {
			deg.drop(extraction.CategoryAllergies)
			continue
		}
		rec.Allergies = append(rec.Allergies, Allergy{
			Allergen: allergen,
			Reaction: field(item, reactionKeys),
		})
	}

	rec.ClinicalNotes = clinicalNotes(in, deg)

	deg.ContractErrors = append(deg.ContractErrors, Check(rec)...)
	return rec, deg
}

// Check validates the encoded record against the output schema and returns
// the violations, if any.
func Check(rec *Record) []string {
	b, err := json.Marshal(rec)
	if err != nil {
		return []string{"encode: " + err.Error()}
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return []string{"decode: " + err.Error()}
	}
	if err := outputSchema.Validate(v); err != nil {
		return []string{err.Error()}
	}
	return nil
}

func field(f extraction.Fields, keys []string) *string {
	if s, ok := f.String(keys...); ok {
		return &s
	}
	return nil
}

// identifying is field for a key item value, rejecting "none"-style values.
func identifying(f extraction.Fields, keys []string) *string {
	s := field(f, keys)
	if s == nil || placeholderValues[strings.ToLower(*s)] {
		return nil
	}
	return s
}

func labStatus(item extraction.Fields, lab LabResult) LabStatus {
	if flag, ok := item.String(labStatusKeys...); ok {
		return ClassifyStatus(flag)
	}
	if lab.Value == nil || lab.ReferenceRange == nil {
		return StatusUnknown
	}
	return DeriveStatus(*lab.Value, *lab.ReferenceRange)
}

// PrettifyParameter turns snake_case or lower-case vital names into display
// names. Names already carrying capitals are returned unchanged.
//
//	PrettifyParameter("blood_pressure") // "Blood Pressure"
//	PrettifyParameter("BP Systolic")    // "BP Systolic"
func PrettifyParameter(name string) string {
	key := extraction.NormalizeKey(name)
	if pretty, ok := vitalNames[key]; ok {
		return pretty
	}
	if !strings.Contains(name, "_") && name != strings.ToLower(name) {
		return name
	}
	return titleWords(strings.ReplaceAll(name, "_", " "))
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// clinicalNotes passes free-text notes through and folds findings into
// "[date] Category: finding" entries joined with " | ".
func clinicalNotes(in *extraction.Intermediate, deg *Degradation) string {
	var findings []string
	for _, item := range in.ClinicalFindings {
		text, ok := item.String(findingTextKeys...)
		if !ok {
			deg.drop(extraction.CategoryClinicalFindings)
			continue
		}
		entry := text
		if cat, ok := item.String(findingCategoryKeys...); ok {
			entry = titleWords(strings.ReplaceAll(cat, "_", " ")) + ": " + text
		}
		if date, ok := item.String(findingDateKeys...); ok {
			entry = "[" + date + "] " + entry
		}
		findings = append(findings, entry)
	}

	var parts []string
	if in.ClinicalNotes != nil && strings.TrimSpace(*in.ClinicalNotes) != "" {
		parts = append(parts, *in.ClinicalNotes)
	}
	if len(findings) > 0 {
		parts = append(parts, strings.Join(findings, " | "))
	}
	if len(parts) == 0 {
		return NoClinicalNotes
	}
	return strings.Join(parts, "\n\n")
}
