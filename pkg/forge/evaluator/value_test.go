package evaluator

import (
	"math"
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"", 0, true},
		{"   ", 0, true},
		{"12", 12, true},
		{" 7 ", 7, true},
		{"-8", -8, true},
		{"+3", 3, true},
		{"1.5", 1.5, true},
		{".5", 0.5, true},
		{"5.", 5, true},
		{"1e3", 1000, true},
		{"2E-1", 0.2, true},
		{"0x1F", 31, true},
		{"0o17", 15, true},
		{"0b101", 5, true},
		{"Infinity", math.Inf(1), true},
		{"-Infinity", math.Inf(-1), true},
		{"-0x10", 0, false},
		{"1_000", 0, false},
		{"inf", 0, false},
		{"NaN", 0, false},
		{"Board0", 0, false},
		{"1.2.3", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseNumeric(tt.input)
			if ok != tt.ok {
				t.Fatalf("parseNumeric(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("parseNumeric(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCoerceAtom(t *testing.T) {
	tests := []struct {
		input string
		want  any
	}{
		{"3", 3.0},
		{"-8", -8.0},
		{"true", true},
		{"#t", true},
		{"false", false},
		{"#f", false},
		{"Board0", "Board0"},
		{"TRUE", "TRUE"},
	}

	for _, tt := range tests {
		if got := coerceAtom(tt.input); got != tt.want {
			t.Errorf("coerceAtom(%q) = %#v, want %#v", tt.input, got, tt.want)
		}
	}
}

func TestAtomKeysDistinguishKinds(t *testing.T) {
	if atomKey(1.0) == atomKey("1") {
		t.Error("number 1 and string \"1\" share a key")
	}
	if atomKey(true) == atomKey("true") {
		t.Error("boolean true and string \"true\" share a key")
	}
	if tupleKey(Tuple{"a", "b"}) == tupleKey(Tuple{"ab"}) {
		t.Error("tuple keys must keep element boundaries")
	}
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	got := dedupe([]Tuple{{"a", 1.0}, {"b", 2.0}, {"a", 1.0}, {"a", "1"}})
	want := TupleSet{{"a", 1.0}, {"b", 2.0}, {"a", "1"}}
	if diff := pretty.Compare(got, want); diff != "" {
		t.Errorf("dedupe (-got +want):\n%s", diff)
	}
}

func TestValueStrings(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{Number(2), "2"},
		{Number(-0.5), "-0.5"},
		{Bool(true), "true"},
		{String("Board0"), "Board0"},
		{TupleSet{}, "[]"},
		{TupleSet{{"Board0", 1.0}, {"Board1", 2.0}}, "[[Board0, 1], [Board1, 2]]"},
	}

	for _, tt := range tests {
		if got := tt.value.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestExtractNumber(t *testing.T) {
	if n, ok := extractNumber(Number(4)); !ok || n != 4 {
		t.Errorf("scalar: got %v, %v", n, ok)
	}
	if n, ok := extractNumber(TupleSet{{4.0}}); !ok || n != 4 {
		t.Errorf("singleton: got %v, %v", n, ok)
	}
	if _, ok := extractNumber(TupleSet{{4.0}, {5.0}}); ok {
		t.Error("two tuples should not extract")
	}
	if _, ok := extractNumber(String("4")); ok {
		t.Error("a string should not extract")
	}
}
