// Package rewrite replaces common two-variable comprehensions with the
// equivalent relational expression, so `{a, b: Node | b in a.edges}`
// evaluates as a lookup of `edges` instead of a loop over every pair.
//
// A pattern is only rewritten when the instance shows the result is the
// same: the relation must be binary, a field compared with = must be
// functional, and a domain narrower than the relation is kept as a
// product, as in `(edges) & (Node -> Node)`. They are off by default.
package rewrite

import (
	"github.com/sambeau/forgeval/pkg/forge/ast"
	"github.com/sambeau/forgeval/pkg/forge/instance"
	"github.com/sambeau/forgeval/pkg/forge/parser"
)

// Pattern names, as reported in Result.Pattern.
const (
	PatternFieldEquality    = "A: Field equality to direct relation"
	PatternJoinMembership   = "C: Membership in a join"
	PatternArrowMembership  = "C: Membership in a join (arrow form)"
	PatternGuardedRange     = "D: Membership with guard on second component"
	PatternMutualReachable  = "E: Mutual reachability via closure"
	PatternNonReflexivePair = "F: Nonreflexive pairs"
)

// Result describes the outcome of Rewrite. When Rewritten is false,
// Expression is the input unchanged and Pattern is empty.
type Result struct {
	Rewritten  bool
	Expression string
	Pattern    string
}

// match is what a pattern found: the relation the result is drawn from and
// the expression that replaces the comprehension.
type match struct {
	pattern    string
	expr       string
	relation   string
	guard      string // unary set the second column is restricted to
	functional bool   // relation must map each atom to at most one
	closure    bool   // result pairs range over every atom of relation
}

type matcher func(a, b string, body ast.Expression) (match, bool)

var matchers = []matcher{
	matchFieldEquality,
	matchMembership,
	matchGuardedRange,
	matchMutualReachability,
	matchNonReflexive,
}

// Rewrite tries each pattern in turn on src, checking the names it uses
// against inst. Input that does not parse, is not a comprehension, does
// not declare exactly two variables over univ or a named set, or whose
// rewrite would change the result, is returned as is.
func Rewrite(src string, inst instance.DataInstance) Result {
	unchanged := Result{Expression: src}
	if inst == nil {
		return unchanged
	}

	expr, err := parser.ParseExpression(src)
	if err != nil {
		return unchanged
	}
	comp, ok := expr.(*ast.ComprehensionExpression)
	if !ok {
		return unchanged
	}
	vars := ast.VarNames(comp.Decls)
	if len(vars) != 2 || vars[0] == vars[1] {
		return unchanged
	}

	s := newSchema(inst)
	da, ok1 := domainOf(comp.Decls, vars[0], s)
	db, ok2 := domainOf(comp.Decls, vars[1], s)
	if !ok1 || !ok2 {
		return unchanged
	}

	for _, m := range matchers {
		found, ok := m(vars[0], vars[1], comp.Body)
		if !ok {
			continue
		}
		out, ok := s.check(found, da, db)
		if !ok {
			return unchanged
		}
		return Result{Rewritten: true, Expression: out, Pattern: found.pattern}
	}
	return unchanged
}

// check returns the rewritten expression for m over the domains da and db,
// or false when the instance does not support the rewrite.
func (s *schema) check(m match, da, db string) (string, bool) {
	r, ok := s.binary(m.relation)
	if !ok {
		return "", false
	}
	if m.guard != "" && !s.unary(m.guard) {
		return "", false
	}
	if m.functional && !functional(r) {
		return "", false
	}
	if s.within(r, da, db, m.closure) {
		return m.expr, true
	}
	return "(" + m.expr + ") & (" + da + " -> " + db + ")", true
}

// domainOf returns the name of the set v is declared over: univ or a name
// that evaluates to a set of atoms.
func domainOf(decls []*ast.Decl, v string, s *schema) (string, bool) {
	for _, d := range decls {
		for _, n := range d.Names {
			if n.Value != v {
				continue
			}
			switch dom := d.Domain.(type) {
			case *ast.ConstantExpression:
				return dom.Name, dom.Name == "univ"
			case *ast.Identifier:
				return dom.Value, s.unary(dom.Value)
			}
			return "", false
		}
	}
	return "", false
}

// matchFieldEquality: a.f = b or b = a.f gives f.
func matchFieldEquality(a, b string, body ast.Expression) (match, bool) {
	cmp, ok := compare(body, "=")
	if !ok {
		return match{}, false
	}
	f, ok := fieldOf(cmp.Left, a)
	if !ok || !isName(cmp.Right, b) {
		f, ok = fieldOf(cmp.Right, a)
		if !ok || !isName(cmp.Left, b) {
			return match{}, false
		}
	}
	if isVar(f, a, b) {
		return match{}, false
	}
	return match{pattern: PatternFieldEquality, expr: f, relation: f, functional: true}, true
}

// matchMembership: b in a.r or a->b in r gives r.
func matchMembership(a, b string, body ast.Expression) (match, bool) {
	cmp, ok := compare(body, "in")
	if !ok {
		return match{}, false
	}
	if isName(cmp.Left, b) {
		if r, ok := fieldOf(cmp.Right, a); ok && !isVar(r, a, b) {
			return match{pattern: PatternJoinMembership, expr: r, relation: r}, true
		}
	}
	if r, ok := arrowIn(body, a, b); ok {
		return match{pattern: PatternArrowMembership, expr: r, relation: r}, true
	}
	return match{}, false
}

// matchGuardedRange: a->b in R and b in S, in either order, gives
// R & (univ -> S).
func matchGuardedRange(a, b string, body ast.Expression) (match, bool) {
	left, right, ok := conjuncts(body)
	if !ok {
		return match{}, false
	}
	for _, pair := range [][2]ast.Expression{{left, right}, {right, left}} {
		r, ok := arrowIn(pair[0], a, b)
		if !ok {
			continue
		}
		if s, ok := memberOf(pair[1], b); ok && !isVar(s, a, b) {
			return match{
				pattern:  PatternGuardedRange,
				expr:     r + " & (univ -> " + s + ")",
				relation: r,
				guard:    s,
			}, true
		}
	}
	return match{}, false
}

// matchMutualReachability: a->b in ^E and b->a in ^E gives (^E) & ~(^E).
func matchMutualReachability(a, b string, body ast.Expression) (match, bool) {
	left, right, ok := conjuncts(body)
	if !ok {
		return match{}, false
	}
	for _, pair := range [][2]ast.Expression{{left, right}, {right, left}} {
		e1, ok1 := arrowInClosure(pair[0], a, b)
		e2, ok2 := arrowInClosure(pair[1], b, a)
		if ok1 && ok2 && e1 == e2 {
			return match{
				pattern:  PatternMutualReachable,
				expr:     "(^" + e1 + ") & ~(^" + e1 + ")",
				relation: e1,
				closure:  true,
			}, true
		}
	}
	return match{}, false
}

// matchNonReflexive: a != b and a->b in R, in either order, gives R - iden.
// `not a = b` is accepted for a != b.
func matchNonReflexive(a, b string, body ast.Expression) (match, bool) {
	left, right, ok := conjuncts(body)
	if !ok {
		return match{}, false
	}
	for _, pair := range [][2]ast.Expression{{left, right}, {right, left}} {
		if !distinct(pair[0], a, b) {
			continue
		}
		if r, ok := arrowIn(pair[1], a, b); ok {
			return match{pattern: PatternNonReflexivePair, expr: r + " - iden", relation: r}, true
		}
	}
	return match{}, false
}

// compare returns expr as an unnegated comparison using op.
func compare(expr ast.Expression, op string) (*ast.CompareExpression, bool) {
	cmp, ok := expr.(*ast.CompareExpression)
	if !ok || cmp.Operator != op || cmp.Negated {
		return nil, false
	}
	return cmp, true
}

func conjuncts(expr ast.Expression) (ast.Expression, ast.Expression, bool) {
	and, ok := expr.(*ast.InfixExpression)
	if !ok || and.Operator != "and" {
		return nil, nil, false
	}
	return and.Left, and.Right, true
}

func isName(expr ast.Expression, name string) bool {
	id, ok := expr.(*ast.Identifier)
	return ok && id.Value == name
}

func identifier(expr ast.Expression) (string, bool) {
	id, ok := expr.(*ast.Identifier)
	if !ok {
		return "", false
	}
	return id.Value, true
}

func isVar(name, a, b string) bool {
	return name == a || name == b
}

// fieldOf matches v.f and returns f.
func fieldOf(expr ast.Expression, v string) (string, bool) {
	dot, ok := expr.(*ast.InfixExpression)
	if !ok || dot.Operator != "." || !isName(dot.Left, v) {
		return "", false
	}
	return identifier(dot.Right)
}

// arrow matches from->to.
func arrow(expr ast.Expression, from, to string) bool {
	pair, ok := expr.(*ast.InfixExpression)
	return ok && pair.Operator == "->" && isName(pair.Left, from) && isName(pair.Right, to)
}

// arrowIn matches a->b in r and returns r.
func arrowIn(expr ast.Expression, a, b string) (string, bool) {
	cmp, ok := compare(expr, "in")
	if !ok || !arrow(cmp.Left, a, b) {
		return "", false
	}
	r, ok := identifier(cmp.Right)
	if !ok || isVar(r, a, b) {
		return "", false
	}
	return r, true
}

// arrowInClosure matches from->to in ^e and returns e.
func arrowInClosure(expr ast.Expression, from, to string) (string, bool) {
	cmp, ok := compare(expr, "in")
	if !ok || !arrow(cmp.Left, from, to) {
		return "", false
	}
	closure, ok := cmp.Right.(*ast.PrefixExpression)
	if !ok || closure.Operator != "^" {
		return "", false
	}
	e, ok := identifier(closure.Right)
	if !ok || isVar(e, from, to) {
		return "", false
	}
	return e, true
}

// memberOf matches v in s and returns s.
func memberOf(expr ast.Expression, v string) (string, bool) {
	cmp, ok := compare(expr, "in")
	if !ok || !isName(cmp.Left, v) {
		return "", false
	}
	return identifier(cmp.Right)
}

// distinct matches a != b, b != a, not a = b and not b = a.
func distinct(expr ast.Expression, a, b string) bool {
	var cmp *ast.CompareExpression
	switch e := expr.(type) {
	case *ast.CompareExpression:
		if !e.Negated {
			return false
		}
		cmp = e
	case *ast.PrefixExpression:
		if e.Operator != "not" {
			return false
		}
		inner, ok := compare(e.Right, "=")
		if !ok {
			return false
		}
		cmp = inner
	default:
		return false
	}
	if cmp.Operator != "=" {
		return false
	}
	return (isName(cmp.Left, a) && isName(cmp.Right, b)) ||
		(isName(cmp.Left, b) && isName(cmp.Right, a))
}
