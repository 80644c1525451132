// Package errors provides structured error types for the forge expression
// language.
//
// ForgeError represents parse, evaluation and instance-loading failures with
// enough metadata (class, code, position, hints) for the REPL and CLI to
// render them and for callers to branch on them programmatically.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassParse      ErrorClass = "parse"      // Malformed expression text
	ClassArity      ErrorClass = "arity"      // Incompatible relation arities
	ClassOperator   ErrorClass = "operator"   // Operator not implemented
	ClassArithmetic ErrorClass = "arithmetic" // Division by zero
	ClassType       ErrorClass = "type"       // Operand of the wrong kind
	ClassUndefined  ErrorClass = "undefined"  // Name not found
	ClassInstance   ErrorClass = "instance"   // Malformed data instance
	ClassIO         ErrorClass = "io"         // File and database access
)

// ForgeError represents any error from parsing, evaluation or loading.
type ForgeError struct {
	Class   ErrorClass     `json:"class"`           // Error category
	Code    string         `json:"code"`            // Error code (e.g., "ARITY-0002")
	Message string         `json:"message"`         // Human-readable message
	Hints   []string       `json:"hints,omitempty"` // Suggestions for fixing
	Line    int            `json:"line"`            // 1-based line (0 if unknown)
	Column  int            `json:"column"`          // 1-based column (0 if unknown)
	File    string         `json:"file,omitempty"`  // File path (if known)
	Data    map[string]any `json:"data,omitempty"`  // Template variables
}

// Error implements the error interface.
func (e *ForgeError) Error() string {
	return e.String()
}

// String returns a one-line representation, location first.
func (e *ForgeError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for display.
func (e *ForgeError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassParse:
		sb.WriteString("Parse error")
	case ClassInstance, ClassIO:
		sb.WriteString("Instance error")
	default:
		sb.WriteString("Evaluation error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Line, e.Column))
		}
		sb.WriteString("\n  ")
	} else if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line, e.Column))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	for i, hint := range e.Hints {
		sb.WriteString("\n  ")
		if i == 0 {
			sb.WriteString("Hint: ")
		} else {
			sb.WriteString("  or: ")
		}
		sb.WriteString(hint)
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *ForgeError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy of the error with the file path set.
func (e *ForgeError) WithFile(file string) *ForgeError {
	c := *e
	c.File = file
	return &c
}

// WithPosition returns a copy of the error with line and column set.
func (e *ForgeError) WithPosition(line, column int) *ForgeError {
	c := *e
	c.Line = line
	c.Column = column
	return &c
}

// IsParseError returns true if this is a parser error.
func (e *ForgeError) IsParseError() bool {
	return e.Class == ClassParse
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass // Error category
	Template string     // Message template with {{.placeholders}}
	Hints    []string   // Hint templates (may use {{.placeholders}})
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// ========================================
	// Parse errors (PARSE-0xxx)
	// ========================================
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "expected {{.Expected}}, got '{{.Got}}'",
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "unexpected token '{{.Token}}'",
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "unterminated string",
	},
	"PARSE-0004": {
		Class:    ClassParse,
		Template: "invalid number literal: {{.Literal}}",
	},
	"PARSE-0005": {
		Class:    ClassParse,
		Template: "unterminated quoted identifier",
		Hints:    []string{"`name` (close the name with a backquote)"},
	},
	"PARSE-0006": {
		Class:    ClassParse,
		Template: "expected the block to be nonempty",
	},
	"PARSE-0007": {
		Class:    ClassParse,
		Template: "illegal character '{{.Char}}'",
	},
	"PARSE-0008": {
		Class:    ClassParse,
		Template: "'-' in prefix position must be followed by a number, got '{{.Got}}'",
	},
	"PARSE-0009": {
		Class:    ClassParse,
		Template: "unexpected '{{.Token}}' after the end of the expression",
	},

	// ========================================
	// Arity errors (ARITY-0xxx)
	// ========================================
	"ARITY-0001": {
		Class:    ClassArity,
		Template: "Join would create a relation of arity 0",
	},
	"ARITY-0002": {
		Class:    ClassArity,
		Template: "{{.Operator}} expected a relation of arity 2, got arity {{.Got}}",
	},
	"ARITY-0003": {
		Class:    ClassArity,
		Template: "arity mismatch in {{.Operator}}: arity {{.Left}} vs arity {{.Right}}",
	},
	"ARITY-0004": {
		Class:    ClassArity,
		Template: "{{.Function}} expects {{.Expected}} argument(s), got {{.Got}}",
	},

	// ========================================
	// Operator errors (OP-0xxx)
	// ========================================
	"OP-0001": {
		Class:    ClassOperator,
		Template: "**UNIMPLEMENTED** {{.Operator}}",
	},
	"OP-0002": {
		Class:    ClassArithmetic,
		Template: "Division by zero is not allowed",
	},

	// ========================================
	// Type errors (TYPE-0xxx)
	// ========================================
	"TYPE-0001": {
		Class:    ClassType,
		Template: "{{.Operator}} expects boolean operands, got {{.Got}}",
	},
	"TYPE-0002": {
		Class:    ClassType,
		Template: "{{.Operator}} expects numeric operands, got {{.Got}}",
	},
	"TYPE-0003": {
		Class:    ClassType,
		Template: "{{.Operator}} expects a set of tuples, got {{.Got}}",
	},
	"TYPE-0004": {
		Class:    ClassType,
		Template: `Cannot convert label "{{.Label}}" to number`,
	},
	"TYPE-0005": {
		Class:    ClassType,
		Template: "the body of '{{.Quantifier}}' must evaluate to a boolean, got {{.Got}}",
	},
	"TYPE-0006": {
		Class:    ClassType,
		Template: "{{.Function}} expects numeric arguments, got {{.Got}}",
	},

	// ========================================
	// Undefined errors (UNDEF-0xxx)
	// ========================================
	"UNDEF-0001": {
		Class:    ClassUndefined,
		Template: "name '{{.Name}}' not found",
	},

	// ========================================
	// Instance errors (INST-0xxx)
	// ========================================
	"INST-0001": {
		Class:    ClassInstance,
		Template: "duplicate type id '{{.ID}}'",
	},
	"INST-0002": {
		Class:    ClassInstance,
		Template: "duplicate relation name '{{.Name}}'",
	},
	"INST-0003": {
		Class:    ClassInstance,
		Template: "relation '{{.Relation}}' tuple {{.Index}} has {{.Got}} atom(s), expected {{.Expected}}",
	},
	"INST-0004": {
		Class:    ClassInstance,
		Template: "relation '{{.Relation}}' tuple {{.Index}} references unknown atom '{{.Atom}}'",
	},
	"INST-0005": {
		Class:    ClassInstance,
		Template: "type '{{.ID}}' ancestry must start with the type itself",
		Hints:    []string{"types: [{{.ID}}, ...]"},
	},
	"INST-0006": {
		Class:    ClassInstance,
		Template: "unsupported instance format '{{.Format}}'",
		Hints:    []string{"use a .json, .yaml or .yml file, optionally compressed as .gz or .zst"},
	},

	// ========================================
	// IO errors (IO-0xxx)
	// ========================================
	"IO-0001": {
		Class:    ClassIO,
		Template: "failed to read '{{.Path}}': {{.Error}}",
	},
	"IO-0002": {
		Class:    ClassIO,
		Template: "database query failed: {{.Error}}",
	},
}

// New creates a ForgeError from a catalog code.
func New(code string, data map[string]any) *ForgeError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &ForgeError{
			Class:   ClassType,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		if rendered := renderTemplate(hintTmpl, data); rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &ForgeError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewWithPosition creates a ForgeError with position information.
func NewWithPosition(code string, line, column int, data map[string]any) *ForgeError {
	err := New(code, data)
	err.Line = line
	err.Column = column
	return err
}

func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// ============================================================================
// Fuzzy Matching - "Did you mean?" suggestions
// ============================================================================

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// matchThreshold is the largest edit distance still worth suggesting.
func matchThreshold(input string) int {
	switch {
	case len(input) >= 7:
		return 3
	case len(input) >= 4:
		return 2
	default:
		return 1
	}
}

// FindClosestMatch returns the candidate nearest to input, or "" when nothing
// is close enough. Comparison is case-insensitive; exact matches are ignored.
func FindClosestMatch(input string, candidates []string) string {
	matches := FindTopMatches(input, candidates, 1)
	if len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// FindTopMatches returns up to n candidates within the edit threshold,
// nearest first.
func FindTopMatches(input string, candidates []string, n int) []string {
	if len(input) == 0 || len(candidates) == 0 || n <= 0 {
		return nil
	}

	type scored struct {
		value    string
		distance int
	}

	inputLower := strings.ToLower(input)
	threshold := matchThreshold(input)

	var matches []scored
	for _, candidate := range candidates {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if dist > 0 && dist <= threshold {
			matches = append(matches, scored{candidate, dist})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	var result []string
	for i := 0; i < len(matches) && i < n; i++ {
		result = append(result, matches[i].value)
	}
	return result
}

// NewUndefinedName creates a name-not-found error, with a "Did you mean"
// hint when one of the known names is close.
func NewUndefinedName(name string, known []string) *ForgeError {
	err := New("UNDEF-0001", map[string]any{"Name": name})
	if suggestion := FindClosestMatch(name, known); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `"+suggestion+"`?")
	}
	return err
}

// ForgeKeywords lists reserved words; callers add them to completion and
// suggestion candidate lists.
var ForgeKeywords = []string{
	"all", "no", "some", "one", "lone", "two", "set", "disj", "sum",
	"and", "or", "xor", "iff", "implies", "else", "not", "in", "is", "ni",
	"let", "bind", "none", "univ", "iden", "this",
	"until", "release", "since", "triggered",
	"always", "eventually", "after", "before", "once", "historically",
}
