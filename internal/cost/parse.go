// Package cost parses free-text repair cost estimates into numeric ranges.
package cost

import (
	"regexp"
	"strconv"
	"strings"
)

// Range is a low/high dollar estimate extracted from free text.
type Range struct {
	Low  float64
	High float64
}

// singleValueBand is the ± fraction applied when an estimate is a single
// value rather than a range.
const singleValueBand = 0.25

// amountPattern matches money-ish tokens: an optional dollar sign, digits
// with optional comma grouping and decimals, and an optional magnitude
// suffix (k/m). Bare numbers without either a "$" or a suffix are ignored so
// prose like "replace 3 shingles" never parses as an estimate.
var amountPattern = regexp.MustCompile(`(\$\s*[0-9][0-9,]*(?:\.[0-9]+)?\s*[kKmM]?)|([0-9][0-9,]*(?:\.[0-9]+)?\s*[kKmM])`)

// ParseRange extracts a numeric cost range from text such as
// "$500 - $2,000", "$500 to $2,000", "1k–2k", or a single "$1,500" (widened
// to a ±25% band). The second return is false when no usable amount exists.
func ParseRange(text string) (Range, bool) {
	matches := amountPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return Range{}, false
	}

	var amounts []float64
	for _, m := range matches {
		if v, ok := parseAmount(m); ok {
			amounts = append(amounts, v)
		}
	}
	if len(amounts) == 0 {
		return Range{}, false
	}

	if len(amounts) == 1 {
		v := amounts[0]
		return Range{Low: v * (1 - singleValueBand), High: v * (1 + singleValueBand)}, true
	}

	low, high := amounts[0], amounts[1]
	if low > high {
		low, high = high, low
	}
	return Range{Low: low, High: high}, true
}

// parseAmount converts one matched token to dollars, applying k/m magnitude
// suffixes.
func parseAmount(token string) (float64, bool) {
	s := strings.TrimSpace(token)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")

	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		mult = 1_000
		s = strings.TrimSpace(s[:len(s)-1])
	case strings.HasSuffix(s, "m"), strings.HasSuffix(s, "M"):
		mult = 1_000_000
		s = strings.TrimSpace(s[:len(s)-1])
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v * mult, true
}

// Add widens the receiver by another range.
func (r *Range) Add(other Range) {
	r.Low += other.Low
	r.High += other.High
}
