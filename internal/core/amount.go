// Package core holds the pure ledger domain: transaction types, the amount
// normalizer, and the balance and cash-session folds.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// NormalizeAmount parses heterogeneous numeric input into a canonical
// non-negative amount with two fractional digits. It never fails: anything
// unparseable (or negative) normalizes to 0, which the ledger boundary then
// rejects. The cascade, tried in order:
//
//	"1234"      -> 1234.00  (plain digits)
//	"12.34"     -> 12.34    (direct decimal-point parse)
//	"45,70"     -> 45.70    (comma decimal separator)
//	"1.234,56"  -> 1234.56  (dot thousands, comma decimal)
//	"1,234.56"  -> 1234.56  (comma thousands, dot decimal)
//	"R$ 12.50"  -> 12.50    (last resort: strip non-numeric characters)
//	"abc"       -> 0.00
//
// Normalizing an already-canonical value returns the same value.
func NormalizeAmount(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	if isDigits(s) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return clamp2(v)
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return clamp2(v)
	}

	comma := strings.Index(s, ",")
	dot := strings.Index(s, ".")
	switch {
	case comma >= 0 && dot < 0:
		// Comma as decimal separator: "45,70".
		if v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
			return clamp2(v)
		}
	case comma >= 0 && dot >= 0 && dot < comma:
		// Dot thousands, comma decimal: "1.234,56".
		t := strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		if v, err := strconv.ParseFloat(t, 64); err == nil {
			return clamp2(v)
		}
	case comma >= 0 && dot >= 0 && comma < dot:
		// Comma thousands, dot decimal: "1,234.56".
		if v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			return clamp2(v)
		}
	}

	// Last resort: keep digits and dots, drop everything else.
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) || r == '.' {
			b.WriteRune(r)
		}
	}
	if v, err := strconv.ParseFloat(b.String(), 64); err == nil {
		return clamp2(v)
	}
	return 0
}

// Round2 rounds to two fractional digits, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp2(v float64) float64 {
	if v < 0 {
		return 0
	}
	return Round2(v)
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
