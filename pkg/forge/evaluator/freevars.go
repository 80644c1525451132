package evaluator

import (
	"sort"

	"github.com/sambeau/forgeval/pkg/forge/ast"
)

// freeVarAnalyzer computes, for every node of a tree, the names it refers to
// that are not bound inside it. Names of types, atoms, relations and builtin
// functions are global and never free unless a binder shadows them.
type freeVarAnalyzer struct {
	isGlobal func(name string) bool
}

// analyze returns the sorted free names of root and each of its
// descendants. shadowed lists names bound outside root, such as predicate
// arguments, that hide globals of the same name.
func (a *freeVarAnalyzer) analyze(root ast.Expression, shadowed map[string]bool) map[ast.Expression][]string {
	bound := make(map[string]int, len(shadowed))
	for name := range shadowed {
		bound[name]++
	}
	out := make(map[ast.Expression][]string)
	a.visit(root, bound, out)
	return out
}

func (a *freeVarAnalyzer) visit(node ast.Expression, bound map[string]int, out map[ast.Expression][]string) map[string]bool {
	free := map[string]bool{}

	switch n := node.(type) {
	case *ast.Identifier:
		if bound[n.Value] > 0 || !a.isGlobal(n.Value) {
			free[n.Value] = true
		}

	case *ast.QuantifiedExpression:
		a.visitBinder(n.Decls, n.Body, bound, out, free)

	case *ast.ComprehensionExpression:
		a.visitBinder(n.Decls, n.Body, bound, out, free)

	default:
		for _, child := range ast.Children(node) {
			for name := range a.visit(child, bound, out) {
				free[name] = true
			}
		}
	}

	out[node] = sortedNames(free)
	return free
}

// visitBinder handles quantifiers and comprehensions: domains are evaluated
// outside the binding, the body inside it.
func (a *freeVarAnalyzer) visitBinder(decls []*ast.Decl, body ast.Expression, bound map[string]int, out map[ast.Expression][]string, free map[string]bool) {
	for _, d := range decls {
		for name := range a.visit(d.Domain, bound, out) {
			free[name] = true
		}
	}

	names := ast.VarNames(decls)
	for _, name := range names {
		bound[name]++
	}
	bodyFree := a.visit(body, bound, out)
	for _, name := range names {
		bound[name]--
	}

	local := make(map[string]bool, len(names))
	for _, name := range names {
		local[name] = true
	}
	for name := range bodyFree {
		if !local[name] {
			free[name] = true
		}
	}
}

func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
