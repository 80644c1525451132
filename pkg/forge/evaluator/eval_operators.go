package evaluator

import (
	"github.com/sambeau/forgeval/pkg/forge/ast"
)

var temporalOperators = map[string]bool{
	"always":       true,
	"eventually":   true,
	"after":        true,
	"before":       true,
	"once":         true,
	"historically": true,
	"until":        true,
	"release":      true,
	"since":        true,
	"triggered":    true,
}

func (e *Evaluator) evalPrefix(node *ast.PrefixExpression) (Value, error) {
	if _, ok := labelOperators[node.Operator]; ok {
		return e.evalLabel(node)
	}
	if temporalOperators[node.Operator] {
		return nil, newUnsupportedErrorAt("Temporal Operator (`"+node.Operator+"`)", node.Token)
	}

	right, err := e.eval(node.Right)
	if err != nil {
		return nil, err
	}

	switch node.Operator {
	case "not":
		b, ok := asBool(right)
		if !ok {
			return nil, newBooleanOperandError("not", right)
		}
		return Bool(!b), nil

	case "~":
		ts, ok := right.(TupleSet)
		if !ok {
			return nil, newBinaryArityError("~", 1)
		}
		return transpose(ts)

	case "^":
		ts, ok := right.(TupleSet)
		if !ok {
			return nil, newBinaryArityError("transitive closure ^", 1)
		}
		return transitiveClosure(ts)

	case "*":
		ts, ok := right.(TupleSet)
		if !ok {
			return nil, newBinaryArityError("reflexive transitive closure *", 1)
		}
		closure, err := transitiveClosure(ts)
		if err != nil {
			return nil, err
		}
		return union(e.identity(), closure), nil

	case "#":
		ts, ok := right.(TupleSet)
		if !ok {
			return nil, newTupleSetOperandError("#", right)
		}
		return Number(float64(len(ts))), nil
	}

	return nil, newUnsupportedErrorAt("Operator (`"+node.Operator+"`)", node.Token)
}

func asBool(v Value) (bool, bool) {
	s, ok := v.(Scalar)
	if !ok {
		return false, false
	}
	b, ok := s.Value.(bool)
	return b, ok
}

func transpose(ts TupleSet) (TupleSet, error) {
	out := make(TupleSet, len(ts))
	for i, t := range ts {
		if len(t) != 2 {
			return nil, newBinaryArityError("~", len(t))
		}
		out[i] = Tuple{t[1], t[0]}
	}
	return out, nil
}

// transitiveClosure returns every (start, reached) pair found by a
// breadth-first search from each node with an outgoing edge. (x, x) is
// included only when x lies on a cycle.
func transitiveClosure(ts TupleSet) (TupleSet, error) {
	if len(ts) == 0 {
		return TupleSet{}, nil
	}

	var starts []any
	graph := make(map[any][]any)
	for _, t := range ts {
		if len(t) != 2 {
			return nil, newBinaryArityError("transitive closure ^", len(t))
		}
		from, to := t[0], t[1]
		if _, ok := graph[from]; !ok {
			starts = append(starts, from)
		}
		graph[from] = append(graph[from], to)
	}

	var out []Tuple
	for _, start := range starts {
		visited := make(map[any]bool)
		queue := append([]any(nil), graph[start]...)
		for i := 0; i < len(queue); i++ {
			cur := queue[i]
			if visited[cur] {
				continue
			}
			visited[cur] = true
			out = append(out, Tuple{start, cur})
			for _, next := range graph[cur] {
				if !visited[next] {
					queue = append(queue, next)
				}
			}
		}
	}
	return dedupe(out), nil
}

// union is the deduplicated concatenation of a and b.
func union(a, b TupleSet) TupleSet {
	all := make([]Tuple, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return dedupe(all)
}

func (e *Evaluator) evalMultiplicity(node *ast.MultiplicityExpression) (Value, error) {
	switch node.Multiplicity {
	case "set":
		return nil, newUnsupportedErrorAt("Set (`set`)", node.Token)
	case "two":
		return nil, newUnsupportedErrorAt("Two (`two`)", node.Token)
	}

	right, err := e.eval(node.Right)
	if err != nil {
		return nil, err
	}
	ts, ok := right.(TupleSet)
	if !ok {
		return Bool(false), nil
	}

	switch node.Multiplicity {
	case "some":
		return Bool(len(ts) > 0), nil
	case "no":
		return Bool(len(ts) == 0), nil
	case "one":
		return Bool(len(ts) == 1), nil
	case "lone":
		return Bool(len(ts) <= 1), nil
	}
	return nil, newUnsupportedErrorAt("Multiplicity (`"+node.Multiplicity+"`)", node.Token)
}

func (e *Evaluator) evalInfix(node *ast.InfixExpression) (Value, error) {
	switch node.Operator {
	case "and", "or", "implies":
		return e.evalShortCircuit(node)
	case ".":
		return e.evalDotJoin(node)
	case "++":
		return nil, newUnsupportedErrorAt("pplus (`++`)", node.Token)
	case "<:":
		return nil, newUnsupportedErrorAt("Subtype Operator (`<:`)", node.Token)
	case ":>":
		return nil, newUnsupportedErrorAt("Supertype Operator (`:>`)", node.Token)
	}
	if temporalOperators[node.Operator] {
		return nil, newUnsupportedErrorAt("Temporal Operator (`"+node.Operator+"`)", node.Token)
	}

	left, err := e.eval(node.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(node.Right)
	if err != nil {
		return nil, err
	}

	switch node.Operator {
	case "xor", "iff":
		l, ok := asBool(left)
		if !ok {
			return nil, newBooleanOperandError(node.Operator, left)
		}
		r, ok := asBool(right)
		if !ok {
			return nil, newBooleanOperandError(node.Operator, right)
		}
		if node.Operator == "xor" {
			return Bool(l != r), nil
		}
		return Bool(l == r), nil

	case "+":
		return setUnion(left, right)
	case "-":
		return setDifference(left, right)
	case "&":
		return setIntersection(left, right)
	case "->":
		return product(asTupleSet(left), asTupleSet(right)), nil
	}

	return nil, newUnsupportedErrorAt("Operator (`"+node.Operator+"`)", node.Token)
}

// evalShortCircuit handles and, or and implies, which skip their right
// operand when the left decides the result.
func (e *Evaluator) evalShortCircuit(node *ast.InfixExpression) (Value, error) {
	left, err := e.eval(node.Left)
	if err != nil {
		return nil, err
	}
	l, ok := asBool(left)
	if !ok {
		return nil, newBooleanOperandError(node.Operator, left)
	}

	switch node.Operator {
	case "and":
		if !l {
			return Bool(false), nil
		}
	case "or":
		if l {
			return Bool(true), nil
		}
	case "implies":
		if !l {
			return Bool(true), nil
		}
	}

	right, err := e.eval(node.Right)
	if err != nil {
		return nil, err
	}
	r, ok := asBool(right)
	if !ok {
		return nil, newBooleanOperandError(node.Operator, right)
	}
	return Bool(r), nil
}

func (e *Evaluator) evalIf(node *ast.IfExpression) (Value, error) {
	cond, err := e.eval(node.Condition)
	if err != nil {
		return nil, err
	}
	c, ok := asBool(cond)
	if !ok {
		return nil, newBooleanOperandError("implies", cond)
	}
	if c {
		return e.eval(node.Consequence)
	}
	return e.eval(node.Alternative)
}

// setUnion implements +. Two scalars make a two-element set; an empty
// operand returns the other unchanged.
func setUnion(left, right Value) (Value, error) {
	ls, lScalar := left.(Scalar)
	rs, rScalar := right.(Scalar)

	switch {
	case lScalar && rScalar:
		return dedupe([]Tuple{{ls.Value}, {rs.Value}}), nil
	case lScalar:
		rt := right.(TupleSet)
		if len(rt) == 0 {
			return left, nil
		}
		if rt.Arity() != 1 {
			return nil, newArityMismatch("set union", 1, rt.Arity())
		}
		return union(TupleSet{{ls.Value}}, rt), nil
	case rScalar:
		lt := left.(TupleSet)
		if len(lt) == 0 {
			return right, nil
		}
		if lt.Arity() != 1 {
			return nil, newArityMismatch("set union", lt.Arity(), 1)
		}
		return union(lt, TupleSet{{rs.Value}}), nil
	}

	lt, rt := left.(TupleSet), right.(TupleSet)
	if len(lt) == 0 {
		return rt, nil
	}
	if len(rt) == 0 {
		return lt, nil
	}
	if lt.Arity() != rt.Arity() {
		return nil, newArityMismatch("set union", lt.Arity(), rt.Arity())
	}
	return union(lt, rt), nil
}

// setDifference implements -. A scalar left operand stays a scalar unless
// it is removed.
func setDifference(left, right Value) (Value, error) {
	ls, lScalar := left.(Scalar)
	rs, rScalar := right.(Scalar)

	switch {
	case lScalar && rScalar:
		if ls.Value == rs.Value {
			return TupleSet{}, nil
		}
		return left, nil
	case lScalar:
		rt := right.(TupleSet)
		if len(rt) == 0 {
			return left, nil
		}
		if rt.Arity() != 1 {
			return nil, newArityMismatch("set difference", 1, rt.Arity())
		}
		if containsAtom(rt, ls.Value) {
			return TupleSet{}, nil
		}
		return left, nil
	case rScalar:
		lt := left.(TupleSet)
		if len(lt) == 0 {
			return TupleSet{}, nil
		}
		if lt.Arity() != 1 {
			return nil, newArityMismatch("set difference", lt.Arity(), 1)
		}
		return filter(lt, func(t Tuple) bool { return t[0] != rs.Value }), nil
	}

	lt, rt := left.(TupleSet), right.(TupleSet)
	if len(lt) == 0 {
		return TupleSet{}, nil
	}
	if len(rt) == 0 {
		return lt, nil
	}
	if lt.Arity() != rt.Arity() {
		return nil, newArityMismatch("set difference", lt.Arity(), rt.Arity())
	}
	remove := keySet(rt)
	return filter(lt, func(t Tuple) bool { return !remove[tupleKey(t)] }), nil
}

// setIntersection implements &.
func setIntersection(left, right Value) (Value, error) {
	ls, lScalar := left.(Scalar)
	rs, rScalar := right.(Scalar)

	switch {
	case lScalar && rScalar:
		if ls.Value == rs.Value {
			return left, nil
		}
		return TupleSet{}, nil
	case lScalar:
		rt := right.(TupleSet)
		if len(rt) == 0 {
			return TupleSet{}, nil
		}
		if rt.Arity() != 1 {
			return nil, newArityMismatch("set intersection", 1, rt.Arity())
		}
		if containsAtom(rt, ls.Value) {
			return left, nil
		}
		return TupleSet{}, nil
	case rScalar:
		lt := left.(TupleSet)
		if len(lt) == 0 {
			return TupleSet{}, nil
		}
		if lt.Arity() != 1 {
			return nil, newArityMismatch("set intersection", lt.Arity(), 1)
		}
		if containsAtom(lt, rs.Value) {
			return right, nil
		}
		return TupleSet{}, nil
	}

	lt, rt := left.(TupleSet), right.(TupleSet)
	if len(lt) == 0 || len(rt) == 0 {
		return TupleSet{}, nil
	}
	if lt.Arity() != rt.Arity() {
		return nil, newArityMismatch("set intersection", lt.Arity(), rt.Arity())
	}
	keep := keySet(rt)
	return filter(lt, func(t Tuple) bool { return keep[tupleKey(t)] }), nil
}

func containsAtom(ts TupleSet, v any) bool {
	for _, t := range ts {
		if len(t) == 1 && t[0] == v {
			return true
		}
	}
	return false
}

func filter(ts TupleSet, keep func(Tuple) bool) TupleSet {
	out := make(TupleSet, 0, len(ts))
	for _, t := range ts {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// product implements ->, concatenating every left tuple with every right
// tuple.
func product(left, right TupleSet) TupleSet {
	out := make([]Tuple, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			t := make(Tuple, 0, len(l)+len(r))
			t = append(t, l...)
			t = append(t, r...)
			out = append(out, t)
		}
	}
	return dedupe(out)
}

// evalDotJoin evaluates left.right. When right names a relation the
// prebuilt first-column index is used instead of indexing on the fly.
func (e *Evaluator) evalDotJoin(node *ast.InfixExpression) (Value, error) {
	left, err := e.eval(node.Left)
	if err != nil {
		return nil, err
	}

	if idx, ok := e.relationJoinIndex(node.Right); ok {
		return join(left, nil, idx)
	}

	right, err := e.eval(node.Right)
	if err != nil {
		return nil, err
	}
	return join(left, right, nil)
}

// relationJoinIndex returns the join index for expr when it is a bare
// relation name not shadowed by a variable.
func (e *Evaluator) relationJoinIndex(expr ast.Expression) (map[any][]Tuple, bool) {
	id, ok := expr.(*ast.Identifier)
	if !ok || id.Value == "true" || id.Value == "false" {
		return nil, false
	}
	if _, bound := e.env.lookup(id.Value); bound {
		return nil, false
	}
	return e.index.joinIndex(id.Value)
}

// join matches the last atom of each left tuple with the first atom of each
// right tuple and concatenates the rest. idx, if given, is the right
// operand's first-column index and right is ignored.
func join(left, right Value, idx map[any][]Tuple) (TupleSet, error) {
	lt := asTupleSet(left)
	if idx == nil {
		idx = indexFirstColumn(asTupleSet(right))
	}

	var out []Tuple
	for _, l := range lt {
		if len(l) == 0 {
			continue
		}
		for _, r := range idx[l[len(l)-1]] {
			t := make(Tuple, 0, len(l)-1+len(r)-1)
			t = append(t, l[:len(l)-1]...)
			t = append(t, r[1:]...)
			if len(t) == 0 {
				return nil, newArityError("ARITY-0001", nil)
			}
			out = append(out, t)
		}
	}
	return dedupe(out), nil
}

// evalBoxJoin evaluates base[args]. A builtin base is called with the
// arguments; otherwise each argument is joined onto the base in turn, so
// r[a, b] is b.(a.r).
func (e *Evaluator) evalBoxJoin(node *ast.BoxJoinExpression) (Value, error) {
	var (
		base    Value
		baseIdx map[any][]Tuple
	)
	if idx, ok := e.relationJoinIndex(node.Base); ok {
		baseIdx = idx
	} else {
		v, err := e.eval(node.Base)
		if err != nil {
			return nil, err
		}
		base = v
	}

	if s, ok := base.(Scalar); ok && !s.label {
		if name, ok := s.Value.(string); ok && IsBuiltin(name) {
			args, err := e.builtinArgs(node.Args)
			if err != nil {
				return nil, err
			}
			return callBuiltin(name, args)
		}
	}

	var result Value = base
	for i, arg := range node.Args {
		a, err := e.eval(arg)
		if err != nil {
			return nil, err
		}
		var joined TupleSet
		if i == 0 && baseIdx != nil {
			joined, err = join(a, nil, baseIdx)
		} else {
			joined, err = join(a, result, nil)
		}
		if err != nil {
			return nil, err
		}
		result = joined
	}
	if result == nil {
		// r[] with no arguments is r itself
		return e.eval(node.Base)
	}
	return result, nil
}

// builtinArgs flattens the argument list: a scalar is one argument and a
// set contributes each of its tuples.
func (e *Evaluator) builtinArgs(exprs []ast.Expression) ([]Tuple, error) {
	var args []Tuple
	for _, expr := range exprs {
		v, err := e.eval(expr)
		if err != nil {
			return nil, err
		}
		switch v := v.(type) {
		case Scalar:
			args = append(args, Tuple{v.Value})
		case TupleSet:
			args = append(args, v...)
		}
	}
	return args, nil
}

func (e *Evaluator) evalCompare(node *ast.CompareExpression) (Value, error) {
	switch node.Operator {
	case "is":
		return nil, newUnsupportedErrorAt("Type Check (`is`)", node.Token)
	case "ni":
		return nil, newUnsupportedErrorAt("Set Non-Membership (`ni`)", node.Token)
	}

	left, err := e.eval(node.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(node.Right)
	if err != nil {
		return nil, err
	}

	var result bool
	switch node.Operator {
	case "=":
		result = equal(left, right)
	case "in":
		result = subset(asTupleSet(left), asTupleSet(right))
	default:
		l, ok := extractNumber(left)
		if !ok {
			return nil, newNumericOperandError(node.Operator, left)
		}
		r, ok := extractNumber(right)
		if !ok {
			return nil, newNumericOperandError(node.Operator, right)
		}
		result = compareNumbers(node.Operator, l, r)
	}

	if node.Negated {
		result = !result
	}
	return Bool(result), nil
}

// equal compares scalars by value, a scalar with a singleton set by its one
// atom, and two sets as sets.
func equal(left, right Value) bool {
	ls, lScalar := left.(Scalar)
	rs, rScalar := right.(Scalar)

	switch {
	case lScalar && rScalar:
		return ls.Value == rs.Value
	case lScalar:
		rt := right.(TupleSet)
		return len(rt) == 1 && len(rt[0]) == 1 && rt[0][0] == ls.Value
	case rScalar:
		lt := left.(TupleSet)
		return len(lt) == 1 && len(lt[0]) == 1 && lt[0][0] == rs.Value
	}

	lt, rt := left.(TupleSet), right.(TupleSet)
	return len(lt) == len(rt) && subset(lt, rt) && subset(rt, lt)
}

// subset reports whether every tuple of a is in b.
func subset(a, b TupleSet) bool {
	in := keySet(b)
	for _, t := range a {
		if !in[tupleKey(t)] {
			return false
		}
	}
	return true
}
