package evaluator

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/sambeau/forgeval/pkg/forge/ast"
)

func TestFreeVariables(t *testing.T) {
	e := New(loadTTT(t))

	tests := []struct {
		name string
		expr string
		want []string
	}{
		{"relations and atoms are global", "Board0.next", []string{}},
		{"unknown names are free", "x.next = y", []string{"x", "y"}},
		{"builtins and booleans are global", "add[x, 1] = 2 and true", []string{"x"}},
		{"quantifier removes bound names", "all i: Int | i.next = j", []string{"j"}},
		{"domain names stay free", "some i: x | i = i", []string{"x"}},
		{"comprehension", "{a, b: Int | a < b and b < c}", []string{"c"}},
		{"shadowed relation is bound", "some next: Int | next = 1", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := mustParse(t, tt.expr)
			got := e.analyzer.analyze(expr, nil)[expr]
			if diff := pretty.Compare(got, tt.want); diff != "" {
				t.Errorf("free variables of %q (-got +want):\n%s", tt.expr, diff)
			}
		})
	}
}

func TestFreeVariablesOfBody(t *testing.T) {
	e := New(loadTTT(t))

	expr := mustParse(t, "some next: Int | next = 1").(*ast.QuantifiedExpression)
	all := e.analyzer.analyze(expr, nil)

	if diff := pretty.Compare(all[expr.Body], []string{"next"}); diff != "" {
		t.Errorf("a bound name shadowing a relation is free in the body (-got +want):\n%s", diff)
	}
	if diff := pretty.Compare(all[expr.Decls[0].Domain], []string{}); diff != "" {
		t.Errorf("domain (-got +want):\n%s", diff)
	}
}

func TestFreeVariablesHonorOuterBindings(t *testing.T) {
	e := New(loadTTT(t))

	expr := mustParse(t, "board.X0")
	got := e.analyzer.analyze(expr, map[string]bool{"board": true})[expr]
	if diff := pretty.Compare(got, []string{"board"}); diff != "" {
		t.Errorf("(-got +want):\n%s", diff)
	}
}
