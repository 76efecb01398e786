// Package refrange parses lab reference-range expressions and judges numeric values
// against them.
//
// Supported shapes are "A-B" (inclusive range), "<X" (strict upper bound) and ">X"
// (strict lower bound). Anything else is Unparseable; parsing never fails loudly.
package refrange

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind tags the shape of a parsed reference expression.
type Kind int

const (
	Unparseable Kind = iota
	Range
	UpperBound
	LowerBound
)

// NotAvailable is displayed when no reference can be rendered.
const NotAvailable = "N/A"

var numberPattern = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case Range:
		return "range"
	case UpperBound:
		return "upper_bound"
	case LowerBound:
		return "lower_bound"
	default:
		return "unparseable"
	}
}

// Bounds is the tagged result of parsing. Low is set for Range and LowerBound, High
// for Range and UpperBound. A strict side excludes the limit itself from the normal
// interval.
type Bounds struct {
	Kind       Kind
	Low        float64
	High       float64
	StrictLow  bool
	StrictHigh bool
}

// Parse reads a free-text reference expression.
func Parse(text string) Bounds {
	s := strings.TrimSpace(text)
	if s == "" {
		return Bounds{Kind: Unparseable}
	}

	switch s[0] {
	case '<':
		if v, ok := parseNumber(s[1:]); ok {
			return Bounds{Kind: UpperBound, High: v, StrictHigh: true}
		}
		return Bounds{Kind: Unparseable}
	case '>':
		if v, ok := parseNumber(s[1:]); ok {
			return Bounds{Kind: LowerBound, Low: v, StrictLow: true}
		}
		return Bounds{Kind: Unparseable}
	}

	if strings.Count(s, "-") != 1 {
		return Bounds{Kind: Unparseable}
	}

	parts := strings.SplitN(s, "-", 2)
	low, okLow := parseNumber(parts[0])
	high, okHigh := parseNumber(parts[1])
	if !okLow || !okHigh || low > high {
		return Bounds{Kind: Unparseable}
	}

	return Bounds{Kind: Range, Low: low, High: high}
}

// FromExplicit builds inclusive bounds from already-parsed limits. Either limit may
// be nil; with both nil the result is Unparseable.
func FromExplicit(low, high *float64) Bounds {
	switch {
	case low != nil && high != nil:
		return Bounds{Kind: Range, Low: *low, High: *high}
	case high != nil:
		return Bounds{Kind: UpperBound, High: *high}
	case low != nil:
		return Bounds{Kind: LowerBound, Low: *low}
	default:
		return Bounds{Kind: Unparseable}
	}
}

// Complete fills the side b lacks from other. ok is false when b is already a
// Range, when other has nothing for the missing side, or when the result would be
// inverted; b is then returned unchanged.
func (b Bounds) Complete(other Bounds) (completed Bounds, ok bool) {
	original := b
	switch {
	case b.Kind == LowerBound && (other.Kind == Range || other.Kind == UpperBound):
		b.Kind, b.High, b.StrictHigh = Range, other.High, other.StrictHigh
	case b.Kind == UpperBound && (other.Kind == Range || other.Kind == LowerBound):
		b.Kind, b.Low, b.StrictLow = Range, other.Low, other.StrictLow
	default:
		return b, false
	}
	if b.Low > b.High {
		return original, false
	}
	return b, true
}

// Outside reports whether v falls outside the normal interval. known is false when
// the bounds carry no usable limit.
func (b Bounds) Outside(v float64) (outside bool, known bool) {
	switch b.Kind {
	case Range:
		return b.belowLow(v) || b.aboveHigh(v), true
	case UpperBound:
		return b.aboveHigh(v), true
	case LowerBound:
		return b.belowLow(v), true
	default:
		return false, false
	}
}

func (b Bounds) belowLow(v float64) bool {
	if b.StrictLow {
		return v <= b.Low
	}
	return v < b.Low
}

func (b Bounds) aboveHigh(v float64) bool {
	if b.StrictHigh {
		return v >= b.High
	}
	return v > b.High
}

// String renders the bounds for display.
func (b Bounds) String() string {
	switch b.Kind {
	case Range:
		return FormatNumber(b.Low) + " - " + FormatNumber(b.High)
	case UpperBound:
		if b.StrictHigh {
			return "< " + FormatNumber(b.High)
		}
		return "≤ " + FormatNumber(b.High)
	case LowerBound:
		if b.StrictLow {
			return "> " + FormatNumber(b.Low)
		}
		return "≥ " + FormatNumber(b.Low)
	default:
		return NotAvailable
	}
}

// FormatNumber renders v with the fewest digits that round-trip.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseNumber accepts plain decimals, with either '.' or ',' as separator.
func parseNumber(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if !numberPattern.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
