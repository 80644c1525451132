package evaluator

import (
	"strings"

	"github.com/sambeau/forgeval/pkg/forge/ast"
)

// labelConverter turns one atom into the value a label operator produces.
type labelConverter func(e *Evaluator, atom any) (any, error)

var labelOperators = map[string]labelConverter{
	"@:":     (*Evaluator).labelString,
	"@str:":  (*Evaluator).labelString,
	"@bool:": (*Evaluator).labelBool,
	"@num:":  (*Evaluator).labelNumber,
}

// labelOf returns the display label of an atom. Numbers and booleans are
// their own labels; a known atom uses the instance's label, which may be
// empty, and any other string is its own label.
func (e *Evaluator) labelOf(atom any) string {
	s, ok := atom.(string)
	if !ok {
		return formatAtom(atom)
	}
	if a, ok := e.atoms[s]; ok {
		return a.Label
	}
	return s
}

func (e *Evaluator) labelString(atom any) (any, error) {
	return e.labelOf(atom), nil
}

func (e *Evaluator) labelBool(atom any) (any, error) {
	switch v := atom.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	}

	label := e.labelOf(atom)
	switch strings.ToLower(label) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if f, ok := parseNumeric(label); ok {
		return f != 0, nil
	}
	return label != "", nil
}

func (e *Evaluator) labelNumber(atom any) (any, error) {
	if f, ok := atom.(float64); ok {
		return f, nil
	}
	label := e.labelOf(atom)
	if f, ok := parseNumeric(label); ok {
		return f, nil
	}
	return nil, newTypeError("TYPE-0004", map[string]any{"Label": label})
}

// evalLabel applies a label operator. An operand that resolves to nothing is
// taken literally, using its source text without the outer parentheses.
func (e *Evaluator) evalLabel(node *ast.PrefixExpression) (Value, error) {
	convert := labelOperators[node.Operator]

	val, err := e.eval(node.Right)
	if err != nil {
		if IsNameNotFound(err) {
			return e.labelFromText(convert, node.Right), nil
		}
		return nil, err
	}

	switch v := val.(type) {
	case Scalar:
		if v.label {
			return e.labelFromText(convert, node.Right), nil
		}
		out, err := convert(e, v.Value)
		if err != nil {
			return nil, err
		}
		return Scalar{Value: out}, nil

	case TupleSet:
		if len(v) == 0 {
			return e.labelFromText(convert, node.Right), nil
		}
		if len(v) == 1 && len(v[0]) == 1 {
			out, err := convert(e, v[0][0])
			if err != nil {
				return nil, err
			}
			return Scalar{Value: out}, nil
		}
		mapped := make([]Tuple, len(v))
		for i, t := range v {
			mt := make(Tuple, len(t))
			for j, atom := range t {
				out, err := convert(e, atom)
				if err != nil {
					return nil, err
				}
				mt[j] = out
			}
			mapped[i] = mt
		}
		return dedupe(mapped), nil
	}
	return nil, newTupleSetOperandError(node.Operator, val)
}

func (e *Evaluator) labelFromText(convert labelConverter, operand ast.Expression) Value {
	text := operand.String()
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		text = text[1 : len(text)-1]
	}
	out, err := convert(e, text)
	if err != nil {
		return String(text)
	}
	return Scalar{Value: out}
}
