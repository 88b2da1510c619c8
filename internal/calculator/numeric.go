package calculator

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// plainDecimal is the only accepted shape: optional sign, digits, optional fraction.
var plainDecimal = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// ParseNumericField converts a text-valued statement figure into a number.
// nil, empty, "-" and the full-width "－" mean "not disclosed" and return nil,
// as does anything that is not a plain finite decimal.
// This is the only place numeric coercion of statement text happens.
func ParseNumericField(text *string) *float64 {
	if text == nil {
		return nil
	}
	s := strings.TrimSpace(*text)
	switch s {
	case "", "-", "－":
		return nil
	}
	if !plainDecimal.MatchString(s) {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseNumericString is ParseNumericField for a plain string.
func ParseNumericString(s string) *float64 {
	return ParseNumericField(&s)
}
