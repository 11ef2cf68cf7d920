package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		flag string
		want LabStatus
	}{
		{"critically high", StatusCritical},
		{"CRITICAL LOW", StatusCritical},
		{"Panic value", StatusCritical},
		{"HH", StatusCritical},
		{"c", StatusCritical},
		{"High", StatusHigh},
		{"elevated", StatusHigh},
		{"above range", StatusHigh},
		{"H", StatusHigh},
		{"low", StatusLow},
		{"Decreased", StatusLow},
		{"below normal", StatusLow},
		{"L", StatusLow},
		{"abnormal", StatusUnknown},
		{"A", StatusUnknown},
		{"Normal", StatusNormal},
		{"within normal limits", StatusNormal},
		{"WNL", StatusNormal},
		{"n", StatusNormal},
		{"pending", StatusUnknown},
		{"", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatus(tt.flag))
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		value, rng string
		want       LabStatus
	}{
		{"72", "70-100", StatusNormal},
		{"65 mg/dL", "70 - 100", StatusLow},
		{"250", "70-100", StatusHigh},
		{"4.2", "3.5 to 5.0", StatusNormal},
		{"5.7", "<5.7", StatusHigh},
		{"5.6", "< 5.7", StatusNormal},
		{"60", ">60", StatusLow},
		{"90", "> 60", StatusNormal},
		{"positive", "negative", StatusUnknown},
		{"12", "see report", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.value+" "+tt.rng, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.value, tt.rng))
		})
	}
}
