// Package core provides the cost ledger domain types.
//
// This file contains parsing of cost sums supplied by callers as numbers
// or numeric strings.
package core

import (
	"math"
	"strconv"
	"strings"
)

// ParseSum coerces s to a non-negative finite number.
//
// Leading and trailing whitespace is ignored. Returns ErrInvalidSum for
// anything that is not a number, is NaN or infinite, or is negative.
//
// Examples:
//
//	ParseSum("12.5")  -> 12.5, nil
//	ParseSum(" 0 ")   -> 0, nil
//	ParseSum("-5")    -> 0, ErrInvalidSum
//	ParseSum("1e400") -> 0, ErrInvalidSum (overflows to +Inf)
func ParseSum(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidSum
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidSum
	}
	if !IsFiniteNonNegative(v) {
		return 0, ErrInvalidSum
	}
	return v, nil
}

// IsFiniteNonNegative reports whether v can be stored as a cost sum.
func IsFiniteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
