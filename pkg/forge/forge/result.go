package forge

import (
	"encoding/json"
	"math"

	"github.com/sambeau/forgeval/pkg/forge/evaluator"
)

// Result is the outcome of Session.Evaluate: a value or an error, together
// with the expression that produced it.
type Result struct {
	expression string
	value      evaluator.Value
	err        error
}

// Expression returns the source text as given to Evaluate.
func (r *Result) Expression() string { return r.expression }

// IsError reports whether evaluation failed.
func (r *Result) IsError() bool { return r.err != nil }

// Err returns the failure, an *evaluator.ExpressionError, or nil.
func (r *Result) Err() error { return r.err }

// Value returns the evaluated value, or nil after an error.
func (r *Result) Value() evaluator.Value { return r.value }

// Tuples returns the result as a tuple set. A scalar becomes one 1-tuple;
// an error gives nil.
func (r *Result) Tuples() evaluator.TupleSet {
	switch v := r.value.(type) {
	case evaluator.TupleSet:
		return v
	case evaluator.Scalar:
		return evaluator.TupleSet{{v.Value}}
	}
	return nil
}

// NoResult reports an empty tuple set or an error.
func (r *Result) NoResult() bool {
	if r.err != nil {
		return true
	}
	ts, ok := r.value.(evaluator.TupleSet)
	return ok && len(ts) == 0
}

// IsSingleton reports a scalar or a set holding exactly one 1-tuple.
func (r *Result) IsSingleton() bool {
	_, ok := r.SingleResult()
	return ok
}

// SingleResult returns the one atom of a singleton result.
func (r *Result) SingleResult() (any, bool) {
	switch v := r.value.(type) {
	case evaluator.Scalar:
		return v.Value, true
	case evaluator.TupleSet:
		if len(v) == 1 && len(v[0]) == 1 {
			return v[0][0], true
		}
	}
	return nil, false
}

// SelectedAtoms returns the atom of every 1-tuple in the result.
func (r *Result) SelectedAtoms() []string {
	var out []string
	for _, t := range r.tupleSet() {
		if len(t) == 1 {
			out = append(out, atomString(t[0]))
		}
	}
	return out
}

// SelectedTwoples returns every 2-tuple in the result.
func (r *Result) SelectedTwoples() [][2]string {
	var out [][2]string
	for _, t := range r.tupleSet() {
		if len(t) == 2 {
			out = append(out, [2]string{atomString(t[0]), atomString(t[1])})
		}
	}
	return out
}

// SelectedTuplesAll returns every tuple in the result as strings.
func (r *Result) SelectedTuplesAll() [][]string {
	ts := r.tupleSet()
	out := make([][]string, 0, len(ts))
	for _, t := range ts {
		row := make([]string, len(t))
		for i, a := range t {
			row[i] = atomString(a)
		}
		out = append(out, row)
	}
	return out
}

// tupleSet is the value when it is a tuple set. Scalars select nothing.
func (r *Result) tupleSet() evaluator.TupleSet {
	ts, _ := r.value.(evaluator.TupleSet)
	return ts
}

func atomString(v any) string {
	return evaluator.Scalar{Value: v}.String()
}

// String renders the value the way the REPL prints it, or the error
// message.
func (r *Result) String() string {
	if r.err != nil {
		return r.err.Error()
	}
	return r.value.String()
}

// PrettyPrint renders the result as indented JSON.
func (r *Result) PrettyPrint() string {
	out, err := json.MarshalIndent(r.jsonValue(), "", "  ")
	if err != nil {
		return r.String()
	}
	return string(out)
}

type jsonError struct {
	Message string `json:"message"`
}

type jsonResult struct {
	Expression string     `json:"expression"`
	Result     any        `json:"result,omitempty"`
	Error      *jsonError `json:"error,omitempty"`
}

// MarshalJSON encodes the expression with either its result or its error.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := jsonResult{Expression: r.expression}
	if r.err != nil {
		out.Error = &jsonError{Message: r.err.Error()}
	} else {
		out.Result = r.jsonValue()
	}
	return json.Marshal(out)
}

// jsonValue is the value as plain JSON data: a scalar, or an array of
// arrays of atoms.
func (r *Result) jsonValue() any {
	if r.err != nil {
		return map[string]any{"error": jsonError{Message: r.err.Error()}}
	}
	switch v := r.value.(type) {
	case evaluator.Scalar:
		return jsonAtom(v.Value)
	case evaluator.TupleSet:
		rows := make([][]any, len(v))
		for i, t := range v {
			row := make([]any, len(t))
			for j, a := range t {
				row[j] = jsonAtom(a)
			}
			rows[i] = row
		}
		return rows
	}
	return nil
}

// jsonAtom keeps numbers and booleans as JSON numbers and booleans.
// Infinities have no JSON form and are written as strings.
func jsonAtom(v any) any {
	if f, ok := v.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
		return atomString(v)
	}
	return v
}
