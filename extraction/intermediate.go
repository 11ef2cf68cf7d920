// Package extraction builds the model request from sanitized text and turns
// the model's reply back into an untrusted, partially populated structure.
package extraction

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// Fields is one loosely typed item from the model reply. Keys are
// normalized to lower snake case. Every lookup is absence-checked.
type Fields map[string]any

// String returns the first key holding a usable scalar, stringified.
// Empty strings and the literal "null" count as absent.
func (f Fields) String(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := scalarString(f[k]); ok {
			return s, true
		}
	}
	return "", false
}

// Has reports whether any of keys holds a usable scalar.
func (f Fields) Has(keys ...string) bool {
	_, ok := f.String(keys...)
	return ok
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			return "", false
		}
		return s, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// Intermediate is the decoded model reply. Every category is optional:
// nil means the model did not mention it.
type Intermediate struct {
	PatientInfo      Fields
	Diagnoses        []Fields
	Medications      []Fields
	LabResults       []Fields
	VitalSigns       []Fields
	Allergies        []Fields
	ClinicalFindings []Fields

	// ClinicalNotes is nil when the reply carried no free-text notes.
	ClinicalNotes *string

	// Unrecognized lists top-level keys that matched no category.
	Unrecognized []string
}

// Category names used in the reply schema and the normalized record.
const (
	CategoryPatientInfo      = "patient_info"
	CategoryDiagnoses        = "diagnoses"
	CategoryMedications      = "medications"
	CategoryLabResults       = "lab_results"
	CategoryVitalSigns       = "vital_signs"
	CategoryAllergies        = "allergies"
	CategoryClinicalNotes    = "clinical_notes"
	CategoryClinicalFindings = "clinical_findings"
)

// categoryAliases maps normalized top-level keys to their category.
var categoryAliases = map[string]string{
	"patient_info":         CategoryPatientInfo,
	"patient":              CategoryPatientInfo,
	"patient_information":  CategoryPatientInfo,
	"demographics":         CategoryPatientInfo,
	"patient_demographics": CategoryPatientInfo,

	"diagnoses":    CategoryDiagnoses,
	"diagnosis":    CategoryDiagnoses,
	"conditions":   CategoryDiagnoses,
	"problems":     CategoryDiagnoses,
	"problem_list": CategoryDiagnoses,

	"medications":         CategoryMedications,
	"medication":          CategoryMedications,
	"meds":                CategoryMedications,
	"current_medications": CategoryMedications,

	"lab_results":        CategoryLabResults,
	"labs":               CategoryLabResults,
	"lab_tests":          CategoryLabResults,
	"laboratory_results": CategoryLabResults,
	"laboratory":         CategoryLabResults,

	"vital_signs": CategoryVitalSigns,
	"vitals":      CategoryVitalSigns,

	"allergies": CategoryAllergies,
	"allergy":   CategoryAllergies,

	"clinical_notes": CategoryClinicalNotes,
	"clinical_note":  CategoryClinicalNotes,
	"notes":          CategoryClinicalNotes,

	"clinical_findings": CategoryClinicalFindings,
	"findings":          CategoryClinicalFindings,
	"other_findings":    CategoryClinicalFindings,
}

// NormalizeKey lower-cases a key and folds spaces and hyphens to underscores.
func NormalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(k)
}

// FromMap builds an Intermediate from a decoded JSON object. Values of the
// wrong shape are coerced where possible and ignored otherwise.
func FromMap(m map[string]any) *Intermediate {
	out := &Intermediate{}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, rawKey := range keys {
		v := m[rawKey]
		cat, ok := categoryAliases[NormalizeKey(rawKey)]
		if !ok {
			out.Unrecognized = append(out.Unrecognized, rawKey)
			continue
		}
		switch cat {
		case CategoryPatientInfo:
			if obj, ok := v.(map[string]any); ok {
				out.PatientInfo = mergeFields(out.PatientInfo, toFields(obj))
			}
		case CategoryDiagnoses:
			out.Diagnoses = append(out.Diagnoses, toList(v)...)
		case CategoryMedications:
			out.Medications = append(out.Medications, toList(v)...)
		case CategoryLabResults:
			out.LabResults = append(out.LabResults, toList(v)...)
		case CategoryVitalSigns:
			out.VitalSigns = append(out.VitalSigns, toList(v)...)
		case CategoryAllergies:
			out.Allergies = append(out.Allergies, toList(v)...)
		case CategoryClinicalNotes:
			if s, ok := v.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out.ClinicalNotes = &s
				}
				continue
			}
			out.ClinicalFindings = append(out.ClinicalFindings, toList(v)...)
		case CategoryClinicalFindings:
			out.ClinicalFindings = append(out.ClinicalFindings, toList(v)...)
		}
	}
	return out
}

func toFields(obj map[string]any) Fields {
	f := make(Fields, len(obj))
	for k, v := range obj {
		f[NormalizeKey(k)] = v
	}
	return f
}

func mergeFields(dst, src Fields) Fields {
	if dst == nil {
		return src
	}
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
	return dst
}

// toList coerces a category value into items: a single object becomes a
// one-item list and bare scalars become {"text": value}.
func toList(v any) []Fields {
	switch t := v.(type) {
	case []any:
		items := make([]Fields, 0, len(t))
		for _, el := range t {
			if f := toItem(el); f != nil {
				items = append(items, f)
			}
		}
		return items
	default:
		if f := toItem(t); f != nil {
			return []Fields{f}
		}
		return nil
	}
}

func toItem(v any) Fields {
	if obj, ok := v.(map[string]any); ok {
		return toFields(obj)
	}
	if s, ok := scalarString(v); ok {
		return Fields{"text": s}
	}
	return nil
}
