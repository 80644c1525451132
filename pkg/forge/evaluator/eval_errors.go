// eval_errors.go - Error creation helpers for the forge evaluator
//
// Fatal conditions are *errors.ForgeError values from the catalog. A name
// that resolves to nothing is a NameNotFoundError, which Evaluate recovers
// into an empty result.

package evaluator

import (
	stderrors "errors"

	ferrors "github.com/sambeau/forgeval/pkg/forge/errors"
	"github.com/sambeau/forgeval/pkg/forge/lexer"
)

// NameNotFoundError reports a name that is not a variable, type, atom,
// relation, builtin or label.
type NameNotFoundError struct {
	Name string
}

func (e *NameNotFoundError) Error() string {
	return ferrors.New("UNDEF-0001", map[string]any{"Name": e.Name}).Message
}

// IsNameNotFound reports whether err is, or wraps, a NameNotFoundError.
func IsNameNotFound(err error) bool {
	var nnf *NameNotFoundError
	return stderrors.As(err, &nnf)
}

// newArityError creates an arity error from the catalog.
func newArityError(code string, data map[string]any) *ferrors.ForgeError {
	return ferrors.New(code, data)
}

// newTypeError creates a type error from the catalog.
func newTypeError(code string, data map[string]any) *ferrors.ForgeError {
	return ferrors.New(code, data)
}

func newArithmeticError() *ferrors.ForgeError {
	return ferrors.New("OP-0002", nil)
}

// newUnsupportedError names an operator or construct with no evaluation rule.
func newUnsupportedError(feature string) *ferrors.ForgeError {
	return ferrors.New("OP-0001", map[string]any{"Operator": feature})
}

// newUnsupportedErrorAt is newUnsupportedError with the token's position.
func newUnsupportedErrorAt(feature string, tok lexer.Token) *ferrors.ForgeError {
	return newUnsupportedError(feature).WithPosition(tok.Line, tok.Column)
}

func newArityMismatch(op string, left, right int) *ferrors.ForgeError {
	return newArityError("ARITY-0003", map[string]any{
		"Operator": op,
		"Left":     left,
		"Right":    right,
	})
}

func newBinaryArityError(op string, got int) *ferrors.ForgeError {
	return newArityError("ARITY-0002", map[string]any{
		"Operator": op,
		"Got":      got,
	})
}

func newBooleanOperandError(op string, got Value) *ferrors.ForgeError {
	return newTypeError("TYPE-0001", map[string]any{"Operator": op, "Got": describe(got)})
}

func newNumericOperandError(op string, got Value) *ferrors.ForgeError {
	return newTypeError("TYPE-0002", map[string]any{"Operator": op, "Got": describe(got)})
}

func newTupleSetOperandError(op string, got Value) *ferrors.ForgeError {
	return newTypeError("TYPE-0003", map[string]any{"Operator": op, "Got": describe(got)})
}

// describe names a value's kind for error messages.
func describe(v Value) string {
	if v == nil {
		return "nothing"
	}
	if s, ok := v.(Scalar); ok {
		switch s.Value.(type) {
		case bool:
			return "boolean " + s.String()
		case float64:
			return "number " + s.String()
		default:
			return "string " + s.String()
		}
	}
	return v.valueKind() + " " + v.String()
}

// ExpressionError is a failure of EvaluateString, carrying the source text.
type ExpressionError struct {
	Expression string
	Parse      bool
	Err        error
}

func (e *ExpressionError) Error() string {
	if e.Parse {
		return `Error parsing expression "` + e.Expression + `"`
	}
	return `Error evaluating expression "` + e.Expression + `": ` + errorMessage(e.Err)
}

func (e *ExpressionError) Unwrap() error { return e.Err }

// errorMessage is the message of err without position or hints.
func errorMessage(err error) string {
	var ferr *ferrors.ForgeError
	if stderrors.As(err, &ferr) {
		return ferr.Message
	}
	return err.Error()
}
