package record

import (
	"regexp"
	"strconv"
	"strings"
)

// ClassifyStatus maps a lab flag or status string onto LabStatus. Checks run
// case-insensitively in this order, first hit wins:
//
//	contains "critical" or "panic", or equals "hh", "ll", "c"  -> Critical
//	contains "high", "elevated" or "above", or equals "h"      -> High
//	contains "low", "decreased" or "below", or equals "l"      -> Low
//	contains "abnormal", or equals "a"                         -> Unknown
//	contains "normal", "within" or "wnl", or equals "n"        -> Normal
//	anything else                                              -> Unknown
//
// So "critically high" is Critical and "abnormal" never reads as Normal.
func ClassifyStatus(flag string) LabStatus {
	s := strings.ToLower(strings.TrimSpace(flag))
	switch {
	case s == "":
		return StatusUnknown
	case containsAny(s, "critical", "panic") || s == "hh" || s == "ll" || s == "c":
		return StatusCritical
	case containsAny(s, "high", "elevated", "above") || s == "h":
		return StatusHigh
	case containsAny(s, "low", "decreased", "below") || s == "l":
		return StatusLow
	case strings.Contains(s, "abnormal") || s == "a":
		return StatusUnknown
	case containsAny(s, "normal", "within", "wnl") || s == "n":
		return StatusNormal
	default:
		return StatusUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var (
	numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	rangePattern  = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*(?:-|–|to)\s*(\d+(?:\.\d+)?)`)
	upperPattern  = regexp.MustCompile(`^\s*(?:<=|≤|<)\s*(\d+(?:\.\d+)?)`)
	lowerPattern  = regexp.MustCompile(`^\s*(?:>=|≥|>)\s*(\d+(?:\.\d+)?)`)
)

// DeriveStatus compares a numeric value with a reference range of the form
// "a-b", "<x" or ">x". A value at or above an upper-only bound is High, at
// or below a lower-only bound is Low. Anything unparseable is Unknown.
func DeriveStatus(value, referenceRange string) LabStatus {
	v, ok := firstNumber(value)
	if !ok {
		return StatusUnknown
	}

	if m := rangePattern.FindStringSubmatch(referenceRange); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		switch {
		case v < lo:
			return StatusLow
		case v > hi:
			return StatusHigh
		default:
			return StatusNormal
		}
	}
	if m := upperPattern.FindStringSubmatch(referenceRange); m != nil {
		limit, _ := strconv.ParseFloat(m[1], 64)
		if v >= limit {
			return StatusHigh
		}
		return StatusNormal
	}
	if m := lowerPattern.FindStringSubmatch(referenceRange); m != nil {
		limit, _ := strconv.ParseFloat(m[1], 64)
		if v <= limit {
			return StatusLow
		}
		return StatusNormal
	}
	return StatusUnknown
}

func firstNumber(s string) (float64, bool) {
	m := numberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	return f, err == nil
}
