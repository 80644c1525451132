package errors

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestForgeError_String(t *testing.T) {
	tests := []struct {
		name     string
		err      *ForgeError
		expected string
	}{
		{
			name:     "message only",
			err:      &ForgeError{Message: "something went wrong"},
			expected: "something went wrong",
		},
		{
			name:     "with line and column",
			err:      &ForgeError{Message: "unexpected token", Line: 5, Column: 10},
			expected: "line 5, column 10: unexpected token",
		},
		{
			name:     "with file",
			err:      &ForgeError{Message: "bad tuple", File: "ttt.json", Line: 3, Column: 1},
			expected: "ttt.json: line 3, column 1: bad tuple",
		},
		{
			name: "with hints",
			err: &ForgeError{
				Message: "name 'Borad' not found",
				Hints:   []string{"Did you mean `Board`?"},
			},
			expected: "name 'Borad' not found\n  Did you mean `Board`?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.String(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want String()", got)
			}
		})
	}
}

func TestForgeError_PrettyString(t *testing.T) {
	tests := []struct {
		name     string
		err      *ForgeError
		contains []string
	}{
		{
			name:     "parse error with position",
			err:      NewWithPosition("PARSE-0002", 1, 4, map[string]any{"Token": ")"}),
			contains: []string{"Parse error: line 1, column 4", "unexpected token ')'"},
		},
		{
			name:     "evaluation error",
			err:      New("OP-0002", nil),
			contains: []string{"Evaluation error:", "Division by zero is not allowed"},
		},
		{
			name:     "instance error with hint",
			err:      New("INST-0006", map[string]any{"Format": ".xml"}).WithFile("inst.xml"),
			contains: []string{"Instance error:", "in: inst.xml", "Hint: use a .json"},
		},
		{
			name: "multiple hints",
			err: &ForgeError{
				Class:   ClassUndefined,
				Message: "name 'x' not found",
				Hints:   []string{"first", "second"},
			},
			contains: []string{"Hint: first", "  or: second"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.PrettyString()
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("expected %q to contain %q", got, want)
				}
			}
		})
	}
}

func TestNewFromCatalog(t *testing.T) {
	tests := []struct {
		code     string
		data     map[string]any
		class    ErrorClass
		expected string
	}{
		{"ARITY-0001", nil, ClassArity, "Join would create a relation of arity 0"},
		{"ARITY-0002", map[string]any{"Operator": "transitive closure ^", "Got": 3}, ClassArity,
			"transitive closure ^ expected a relation of arity 2, got arity 3"},
		{"ARITY-0004", map[string]any{"Function": "add", "Expected": 2, "Got": 1}, ClassArity,
			"add expects 2 argument(s), got 1"},
		{"OP-0001", map[string]any{"Operator": "Temporal Operator (`until`)"}, ClassOperator,
			"**UNIMPLEMENTED** Temporal Operator (`until`)"},
		{"OP-0002", nil, ClassArithmetic, "Division by zero is not allowed"},
		{"TYPE-0004", map[string]any{"Label": "abc"}, ClassType, `Cannot convert label "abc" to number`},
		{"UNDEF-0001", map[string]any{"Name": "Foo"}, ClassUndefined, "name 'Foo' not found"},
		{"IO-0001", map[string]any{"Path": "x.json", "Error": "no such file"}, ClassIO,
			"failed to read 'x.json': no such file"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, tt.data)
			if err.Code != tt.code {
				t.Errorf("code = %q", err.Code)
			}
			if err.Class != tt.class {
				t.Errorf("class = %q, want %q", err.Class, tt.class)
			}
			if err.Message != tt.expected {
				t.Errorf("message = %q, want %q", err.Message, tt.expected)
			}
		})
	}
}

func TestNewUnknownCode(t *testing.T) {
	err := New("NOPE-9999", map[string]any{"message": "custom"})
	if err.Message != "custom" {
		t.Errorf("expected custom message, got %q", err.Message)
	}
	if err.Code != "NOPE-9999" {
		t.Errorf("expected code to be kept, got %q", err.Code)
	}
}

func TestWithPositionCopies(t *testing.T) {
	orig := New("PARSE-0006", nil)
	moved := orig.WithPosition(2, 7)
	if orig.Line != 0 {
		t.Errorf("original was modified: line %d", orig.Line)
	}
	if moved.Line != 2 || moved.Column != 7 {
		t.Errorf("expected 2:7, got %d:%d", moved.Line, moved.Column)
	}
	if !moved.IsParseError() {
		t.Error("expected a parse error")
	}
}

func TestToJSON(t *testing.T) {
	err := NewWithPosition("PARSE-0004", 1, 2, map[string]any{"Literal": "9x"})
	data, jerr := err.ToJSON()
	if jerr != nil {
		t.Fatalf("ToJSON: %v", jerr)
	}

	var decoded map[string]any
	if jerr := json.Unmarshal(data, &decoded); jerr != nil {
		t.Fatalf("unmarshal: %v", jerr)
	}
	if decoded["code"] != "PARSE-0004" {
		t.Errorf("code = %v", decoded["code"])
	}
	if decoded["class"] != "parse" {
		t.Errorf("class = %v", decoded["class"])
	}
	if decoded["message"] != "invalid number literal: 9x" {
		t.Errorf("message = %v", decoded["message"])
	}
}

func TestFindClosestMatch(t *testing.T) {
	candidates := []string{"Board", "Game", "next", "Player", "board"}

	tests := []struct {
		input    string
		expected string
	}{
		{"Borad", "Board"},
		{"nxet", "next"},
		{"Gmae", "Game"},
		{"Playr", "Player"},
		{"zzzzzz", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FindClosestMatch(tt.input, candidates); got != tt.expected {
				t.Errorf("FindClosestMatch(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"same", "same", 0},
		{"ab", "ba", 2},
	}
	for _, tt := range tests {
		if got := levenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNewUndefinedNameHint(t *testing.T) {
	err := NewUndefinedName("Bord", []string{"Board", "Game"})
	if len(err.Hints) != 1 || err.Hints[0] != "Did you mean `Board`?" {
		t.Errorf("unexpected hints %v", err.Hints)
	}

	err = NewUndefinedName("xyzzy", []string{"Board", "Game"})
	if len(err.Hints) != 0 {
		t.Errorf("expected no hints, got %v", err.Hints)
	}
}
