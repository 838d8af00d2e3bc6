package timeline

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a sealed interface over the cell types that may appear in episode
// values and table columns. Only Int, Float, String, and Missing implement it.
//
// Float is allowed here, unlike stricter deterministic IRs, because
// continuous accumulators and unit conversions are real-valued. Determinism
// is preserved at the encoding boundary: canonical rendering uses shortest
// round-trip formatting, never locale or precision dependent output.
type Value interface {
	value() // sealed
}

// Missing is the absent value. It propagates through arithmetic:
// missing scaled by any ratio stays missing.
type Missing struct{}

func (Missing) value() {}

// Int is an integer cell (categorical codes, flags, bucket indices).
type Int int64

func (Int) value() {}

// Float is a real-valued cell (accumulators, doses, scaled durations).
type Float float64

func (Float) value() {}

// String is a text cell (labels, composite states, switch patterns).
type String string

func (String) value() {}

// IsMissing reports whether v is absent (Missing or nil).
func IsMissing(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Missing)
	return ok
}

// AsFloat returns the numeric value of v, or false for Missing and String.
func AsFloat(v Value) (float64, bool) {
	switch val := v.(type) {
	case Int:
		return float64(val), true
	case Float:
		return float64(val), true
	default:
		return 0, false
	}
}

// Scale multiplies a numeric value by ratio. Missing propagates; String is
// returned unchanged. Integer cells become Float since ratios are fractional.
func Scale(v Value, ratio float64) Value {
	f, ok := AsFloat(v)
	if !ok {
		return v
	}
	return Float(f * ratio)
}

// Equal reports semantic equality. Int and Float compare numerically, so
// Int(2) equals Float(2).
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// Compare imposes a total order on values: Missing < numeric < String.
// Numeric cells (Int and Float) compare by numeric value, ties by kind
// (Int before Float). The order is arbitrary but fixed; producers use it for
// deterministic tie-breaking and column ordering, never for domain meaning.
func Compare(a, b Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankMissing:
		return 0
	case rankNumeric:
		fa, _ := AsFloat(a)
		fb, _ := AsFloat(b)
		if fa != fb {
			if fa < fb {
				return -1
			}
			return 1
		}
		// Numeric tie: Int sorts before Float.
		_, aInt := a.(Int)
		_, bInt := b.(Int)
		if aInt == bInt {
			return 0
		}
		if aInt {
			return -1
		}
		return 1
	default:
		return strings.Compare(string(a.(String)), string(b.(String)))
	}
}

const (
	rankMissing = iota
	rankNumeric
	rankString
)

func rank(v Value) int {
	switch v.(type) {
	case nil, Missing:
		return rankMissing
	case Int, Float:
		return rankNumeric
	default:
		return rankString
	}
}

// Render returns the canonical text form of a value: "." for Missing,
// base-10 integers, shortest round-trip floats, strings verbatim.
func Render(v Value) string {
	switch val := v.(type) {
	case nil, Missing:
		return "."
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case String:
		return string(val)
	default:
		return fmt.Sprintf("?%T", v)
	}
}

// ColumnSuffix renders a value as a column-name fragment: '-' becomes "neg"
// and '.' becomes "p" so generated per-value column names stay identifier
// safe (Float(2.5) -> "2p5", Int(-1) -> "neg1").
func ColumnSuffix(v Value) string {
	s := Render(v)
	s = strings.ReplaceAll(s, "-", "neg")
	s = strings.ReplaceAll(s, ".", "p")
	return s
}

// ParseValue converts external text to a Value: "." or "" is Missing,
// integers become Int, other numerics Float, everything else String.
// This is the decoding used by stores and scenario files.
func ParseValue(s string) Value {
	if s == "" || s == "." {
		return Missing{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	return String(s)
}
