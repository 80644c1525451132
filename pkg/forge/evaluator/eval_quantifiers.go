package evaluator

import (
	"github.com/sambeau/forgeval/pkg/forge/ast"
	ferrors "github.com/sambeau/forgeval/pkg/forge/errors"
)

// bindings holds the variables introduced by a quantifier or comprehension
// and the atoms each one ranges over.
type bindings struct {
	names  []string
	values [][]any
}

// evalDecls evaluates every domain in the current environment. Each atom of
// each domain tuple is a separate candidate value. A name declared twice
// keeps its first position and its last domain.
func (e *Evaluator) evalDecls(decls []*ast.Decl) (*bindings, error) {
	b := &bindings{}
	position := map[string]int{}

	for _, d := range decls {
		v, err := e.eval(d.Domain)
		if err != nil {
			return nil, err
		}
		values := domainValues(asTupleSet(v))

		for _, n := range d.Names {
			if i, seen := position[n.Value]; seen {
				b.values[i] = values
				continue
			}
			position[n.Value] = len(b.names)
			b.names = append(b.names, n.Value)
			b.values = append(b.values, values)
		}
	}
	return b, nil
}

func domainValues(ts TupleSet) []any {
	seen := map[any]bool{}
	var out []any
	for _, t := range ts {
		for _, v := range t {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// optimizable returns the numeric domains and body pattern when the
// satisfying assignments can be generated directly instead of testing every
// combination.
func (b *bindings) optimizable(body ast.Expression, disjoint bool) ([][]float64, *comparisonPattern, bool) {
	if disjoint || len(b.names) < 2 {
		return nil, nil, false
	}
	domains, ok := numericDomains(b.values)
	if !ok {
		return nil, nil, false
	}
	p := detectComparison(body, b.names)
	if p == nil {
		return nil, nil, false
	}
	return domains, p, true
}

// forEachCombination calls fn with every combination of values, the first
// variable varying slowest, until fn returns false or an error. The tuple
// passed to fn is reused between calls.
func forEachCombination(values [][]any, fn func(Tuple) (bool, error)) error {
	for _, vals := range values {
		if len(vals) == 0 {
			return nil
		}
	}

	pos := make([]int, len(values))
	cur := make(Tuple, len(values))
	for {
		for i, p := range pos {
			cur[i] = values[i][p]
		}
		more, err := fn(cur)
		if err != nil || !more {
			return err
		}

		i := len(pos) - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < len(values[i]) {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			return nil
		}
	}
}

func distinct(t Tuple) bool {
	seen := make(map[any]bool, len(t))
	for _, v := range t {
		if seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// evalQuantified evaluates all, no, some, one and lone.
func (e *Evaluator) evalQuantified(node *ast.QuantifiedExpression) (Value, error) {
	switch node.Quantifier {
	case "two":
		return nil, newUnsupportedErrorAt("Two (`two`)", node.Token)
	case "sum":
		return nil, newUnsupportedErrorAt("Sum (`sum`)", node.Token)
	case "set":
		return nil, newUnsupportedErrorAt("Set (`set`)", node.Token)
	}

	b, err := e.evalDecls(node.Decls)
	if err != nil {
		return nil, err
	}

	if domains, p, ok := b.optimizable(node.Body, node.Disjoint); ok {
		total := 1
		for _, d := range domains {
			total *= len(d)
		}
		return Bool(quantifierHolds(node.Quantifier, countSatisfying(domains, p), total)), nil
	}

	fr := &frame{kind: quantifierFrame, vars: make(map[string]Value, len(b.names))}
	e.env.push(fr)
	defer e.env.pop()

	var (
		matches int
		decided bool
		result  bool
	)
	settle := func(v bool) bool {
		decided, result = true, v
		return false
	}

	err = forEachCombination(b.values, func(t Tuple) (bool, error) {
		if node.Disjoint && !distinct(t) {
			return true, nil
		}
		for i, name := range b.names {
			fr.vars[name] = Scalar{Value: t[i]}
		}

		ok, err := e.evalBody(node.Quantifier, node.Body)
		if err != nil {
			return false, err
		}
		if ok {
			matches++
		}

		switch node.Quantifier {
		case "all":
			if !ok {
				return settle(false), nil
			}
		case "no":
			if ok {
				return settle(false), nil
			}
		case "some":
			if ok {
				return settle(true), nil
			}
		case "one", "lone":
			if matches > 1 {
				return settle(false), nil
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if decided {
		return Bool(result), nil
	}
	switch node.Quantifier {
	case "all", "no", "lone":
		return Bool(true), nil
	case "one":
		return Bool(matches == 1), nil
	}
	return Bool(false), nil
}

// quantifierHolds decides a quantifier from how many of total assignments
// satisfy its body.
func quantifierHolds(quantifier string, matches, total int) bool {
	switch quantifier {
	case "all":
		return matches == total
	case "no":
		return matches == 0
	case "some":
		return matches > 0
	case "one":
		return matches == 1
	case "lone":
		return matches <= 1
	}
	return false
}

// countSatisfying counts the assignments generateSatisfying would produce.
func countSatisfying(domains [][]float64, p *comparisonPattern) int {
	pairs := 0
	for _, a := range domains[p.left] {
		for _, b := range domains[p.right] {
			if compareNumbers(p.op, a, b) {
				pairs++
			}
		}
	}
	rest := 1
	for i, d := range domains {
		if i != p.left && i != p.right {
			rest *= len(d)
		}
	}
	return pairs * rest
}

// evalBody evaluates a quantifier or comprehension body, which must be a
// boolean.
func (e *Evaluator) evalBody(quantifier string, body ast.Expression) (bool, error) {
	v, err := e.eval(body)
	if err != nil {
		return false, err
	}
	b, ok := asBool(v)
	if !ok {
		return false, ferrors.New("TYPE-0005", map[string]any{
			"Quantifier": quantifier,
			"Got":        describe(v),
		})
	}
	return b, nil
}

// evalComprehension returns the assignments that satisfy the body, one
// tuple per assignment in declaration order.
func (e *Evaluator) evalComprehension(node *ast.ComprehensionExpression) (Value, error) {
	b, err := e.evalDecls(node.Decls)
	if err != nil {
		return nil, err
	}

	if domains, p, ok := b.optimizable(node.Body, false); ok {
		return dedupe(generateSatisfying(domains, p)), nil
	}

	fr := &frame{kind: quantifierFrame, vars: make(map[string]Value, len(b.names))}
	e.env.push(fr)
	defer e.env.pop()

	var out []Tuple
	err = forEachCombination(b.values, func(t Tuple) (bool, error) {
		for i, name := range b.names {
			fr.vars[name] = Scalar{Value: t[i]}
		}
		ok, err := e.evalBody("comprehension", node.Body)
		if err != nil {
			return false, err
		}
		if ok {
			out = append(out, append(Tuple(nil), t...))
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return dedupe(out), nil
}

// evalBlock is the conjunction of the block's members. Every member is
// evaluated.
func (e *Evaluator) evalBlock(node *ast.BlockExpression) (Value, error) {
	result := true
	for _, expr := range node.Expressions {
		v, err := e.eval(expr)
		if err != nil {
			return nil, err
		}
		b, ok := asBool(v)
		if !ok {
			return nil, newBooleanOperandError("block", v)
		}
		result = result && b
	}
	return Bool(result), nil
}
