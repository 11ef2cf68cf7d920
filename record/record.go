// Package record defines the fixed-shape output record and maps the model's
// untrusted extraction onto it.
package record

// NoClinicalNotes is the clinical_notes value when the model reported none.
const NoClinicalNotes = "No clinical notes documented."

// LabStatus classifies a lab result.
type LabStatus string

// Lab statuses.
const (
	StatusNormal   LabStatus = "Normal"
	StatusHigh     LabStatus = "High"
	StatusLow      LabStatus = "Low"
	StatusCritical LabStatus = "Critical"
	StatusUnknown  LabStatus = "Unknown"
)

// Record is the normalized extraction result. Every key is always present
// when encoded; absent item fields encode as null and lists never as null.
type Record struct {
	PatientInfo   PatientInfo  `json:"patient_info"`
	Diagnoses     []Diagnosis  `json:"diagnoses"`
	Medications   []Medication `json:"medications"`
	LabResults    []LabResult  `json:"lab_results"`
	VitalSigns    []VitalSign  `json:"vital_signs"`
	Allergies     []Allergy    `json:"allergies"`
	ClinicalNotes string       `json:"clinical_notes"`
}

type PatientInfo struct {
	Sex    *string `json:"sex"`
	Age    *string `json:"age"`
	Race   *string `json:"race"`
	Height *string `json:"height"`
	Weight *string `json:"weight"`
}

type Diagnosis struct {
	Description *string `json:"description"`
	Code        *string `json:"code"`
	Date        *string `json:"date"`
}

type Medication struct {
	Name       *string `json:"name"`
	Dosage     *string `json:"dosage"`
	Frequency  *string `json:"frequency"`
	Indication *string `json:"indication"`
}

type LabResult struct {
	TestName       *string   `json:"test_name"`
	Value          *string   `json:"value"`
	Unit           *string   `json:"unit"`
	ReferenceRange *string   `json:"reference_range"`
	Status         LabStatus `json:"status"`
	Date           *string   `json:"date"`
}

type VitalSign struct {
	Parameter *string `json:"parameter"`
	Value     *string `json:"value"`
	Unit      *string `json:"unit"`
	Date      *string `json:"date"`
}

type Allergy struct {
	Allergen *string `json:"allergen"`
	Reaction *string `json:"reaction"`
}

// Empty returns a record with every list empty and no notes.
func Empty() *Record {
	return &Record{
		Diagnoses:     []Diagnosis{},
		Medications:   []Medication{},
		LabResults:    []LabResult{},
		VitalSigns:    []VitalSign{},
		Allergies:     []Allergy{},
		ClinicalNotes: NoClinicalNotes,
	}
}

// Counts returns the number of items per list category.
func (r *Record) Counts() map[string]int {
	return map[string]int{
		"diagnoses":   len(r.Diagnoses),
		"medications": len(r.Medications),
		"lab_results": len(r.LabResults),
		"vital_signs": len(r.VitalSigns),
		"allergies":   len(r.Allergies),
	}
}

// Degradation describes where the record is sparser than the model reply.
// It is diagnostic information, not an error.
type Degradation struct {
	// Dropped counts items removed per category for lacking an identifying field
	Dropped map[string]int `json:"dropped,omitempty"`

	// UnknownStatuses counts lab results classified as Unknown
	UnknownStatuses int `json:"unknown_statuses,omitempty"`

	// Unrecognized lists top-level reply keys that matched no category
	Unrecognized []string `json:"unrecognized,omitempty"`

	// ContractErrors holds output self-check failures
	ContractErrors []string `json:"contract_errors,omitempty"`
}

// IsZero reports whether nothing was degraded.
func (d *Degradation) IsZero() bool {
	return d == nil || (len(d.Dropped) == 0 && d.UnknownStatuses == 0 &&
		len(d.Unrecognized) == 0 && len(d.ContractErrors) == 0)
}

// TotalDropped sums Dropped.
func (d *Degradation) TotalDropped() int {
	n := 0
	for _, c := range d.Dropped {
		n += c
	}
	return n
}

func (d *Degradation) drop(category string) {
	if d.Dropped == nil {
		d.Dropped = make(map[string]int)
	}
	d.Dropped[category]++
}
