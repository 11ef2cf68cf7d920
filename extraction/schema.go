package extraction

import "encoding/json"

// ResponseSchema returns the JSON Schema the model reply is asked to follow.
// The parser does not enforce it; it is sent in the prompt as guidance.
func ResponseSchema() map[string]any {
	nullableString := func() map[string]any {
		return map[string]any{"type": []string{"string", "null"}}
	}
	list := func(required string, fields ...string) map[string]any {
		props := make(map[string]any, len(fields))
		for _, f := range fields {
			props[f] = nullableString()
		}
		return map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":       "object",
				"properties": props,
				"required":   []string{required},
			},
		}
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			CategoryPatientInfo: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sex":    nullableString(),
					"age":    nullableString(),
					"race":   nullableString(),
					"height": nullableString(),
					"weight": nullableString(),
				},
			},
			CategoryDiagnoses:   list("description", "description", "code", "date"),
			CategoryMedications: list("name", "name", "dosage", "frequency", "route", "indication"),
			CategoryLabResults: list("test_name",
				"test_name", "value", "unit", "reference_range", "abnormal_flag", "date"),
			CategoryVitalSigns:       list("parameter", "parameter", "value", "unit", "date"),
			CategoryAllergies:        list("allergen", "allergen", "reaction"),
			CategoryClinicalFindings: list("finding", "category", "finding", "date"),
			CategoryClinicalNotes:    nullableString(),
		},
	}
}

// ResponseSchemaJSON returns ResponseSchema as indented JSON.
func ResponseSchemaJSON() string {
	b, err := json.MarshalIndent(ResponseSchema(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
