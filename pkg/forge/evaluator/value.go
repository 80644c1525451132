package evaluator

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Value is the result of evaluating an expression: a Scalar or a TupleSet.
type Value interface {
	String() string
	valueKind() string
}

// Scalar is a single string, number (float64) or boolean.
type Scalar struct {
	Value any

	// label marks an identifier that resolved to nothing and stands for
	// itself. At top level it becomes the empty set.
	label bool
}

func (s Scalar) valueKind() string { return "scalar" }

// String renders numbers without trailing zeros and booleans as true/false.
func (s Scalar) String() string { return formatAtom(s.Value) }

// IsLabel reports whether the scalar is an unresolved identifier.
func (s Scalar) IsLabel() bool { return s.label }

// Tuple is an ordered list of atoms. Each element is a string, float64 or
// bool.
type Tuple []any

func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = formatAtom(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// TupleSet is a relation: an ordered set of tuples of equal arity.
type TupleSet []Tuple

func (ts TupleSet) valueKind() string { return "tuple set" }

func (ts TupleSet) String() string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Arity is the length of the first tuple, or 0 for the empty set.
func (ts TupleSet) Arity() int {
	if len(ts) == 0 {
		return 0
	}
	return len(ts[0])
}

// Bool returns a boolean scalar.
func Bool(b bool) Scalar { return Scalar{Value: b} }

// Number returns a numeric scalar.
func Number(f float64) Scalar { return Scalar{Value: f} }

// String returns a string scalar.
func String(s string) Scalar { return Scalar{Value: s} }

func formatAtom(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatNumber(v)
	default:
		return ""
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.IsNaN(f):
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// atomKey encodes one atom so that the number 1, the string "1" and the
// boolean true never collide.
func atomKey(v any) string {
	switch v := v.(type) {
	case string:
		return "s" + v
	case float64:
		return "n" + formatNumber(v)
	case bool:
		if v {
			return "bt"
		}
		return "bf"
	default:
		return "?"
	}
}

func tupleKey(t Tuple) string {
	var sb strings.Builder
	for _, v := range t {
		sb.WriteString(atomKey(v))
		sb.WriteByte(0)
	}
	return sb.String()
}

// valueKey renders a bound value for use in a cache key.
func valueKey(v Value) string {
	switch v := v.(type) {
	case Scalar:
		return atomKey(v.Value)
	case TupleSet:
		var sb strings.Builder
		sb.WriteByte('{')
		for _, t := range v {
			sb.WriteString(tupleKey(t))
			sb.WriteByte(1)
		}
		sb.WriteByte('}')
		return sb.String()
	default:
		return ""
	}
}

// dedupe keeps the first occurrence of each tuple.
func dedupe(tuples []Tuple) TupleSet {
	seen := make(map[string]bool, len(tuples))
	out := make(TupleSet, 0, len(tuples))
	for _, t := range tuples {
		k := tupleKey(t)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

func keySet(ts TupleSet) map[string]bool {
	set := make(map[string]bool, len(ts))
	for _, t := range ts {
		set[tupleKey(t)] = true
	}
	return set
}

// asTupleSet wraps a scalar as {[v]}.
func asTupleSet(v Value) TupleSet {
	switch v := v.(type) {
	case TupleSet:
		return v
	case Scalar:
		return TupleSet{{v.Value}}
	}
	return nil
}

// extractNumber accepts a number or a singleton set holding one.
func extractNumber(v Value) (float64, bool) {
	switch v := v.(type) {
	case Scalar:
		f, ok := v.Value.(float64)
		return f, ok
	case TupleSet:
		if len(v) == 1 && len(v[0]) == 1 {
			f, ok := v[0][0].(float64)
			return f, ok
		}
	}
	return 0, false
}

var (
	decimalPattern  = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
	prefixedPattern = regexp.MustCompile(`^0([xX][0-9a-fA-F]+|[oO][0-7]+|[bB][01]+)$`)
)

// parseNumeric follows the numeric-string rules of the instance format:
// decimal and exponent forms, unsigned 0x/0o/0b literals, Infinity, and
// blank text as zero.
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	if decimalPattern.MatchString(s) {
		// ParseFloat reports range errors alongside ±Inf or 0, which is
		// the value wanted here.
		f, _ := strconv.ParseFloat(s, 64)
		return f, true
	}
	if prefixedPattern.MatchString(s) {
		n, err := strconv.ParseUint(s[2:], prefixBase(s[1]), 64)
		if err != nil {
			return 0, false
		}
		return float64(n), true
	}
	return 0, false
}

func prefixBase(c byte) int {
	switch c {
	case 'x', 'X':
		return 16
	case 'o', 'O':
		return 8
	default:
		return 2
	}
}

// coerceAtom turns an atom id from the instance into the value the
// evaluator works with: numeric text becomes a number, "true"/"#t" and
// "false"/"#f" become booleans, anything else stays a string.
func coerceAtom(id string) any {
	if f, ok := parseNumeric(id); ok {
		return f
	}
	switch id {
	case "true", "#t":
		return true
	case "false", "#f":
		return false
	}
	return id
}

func coerceTuple(atoms []string) Tuple {
	t := make(Tuple, len(atoms))
	for i, a := range atoms {
		t[i] = coerceAtom(a)
	}
	return t
}
