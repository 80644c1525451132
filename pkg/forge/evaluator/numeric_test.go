package evaluator

import (
	"sort"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/kylelemons/godebug/pretty"

	"github.com/sambeau/forgeval/pkg/forge/ast"
	"github.com/sambeau/forgeval/pkg/forge/parser"
)

func mustParse(t *testing.T, src string) ast.Expression {
	t.Helper()
	expr, err := parser.ParseExpression(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return expr
}

func TestDetectComparison(t *testing.T) {
	vars := []string{"a", "b", "c"}

	tests := []struct {
		body string
		want *comparisonPattern
	}{
		{"a < b", &comparisonPattern{left: 0, right: 1, op: "<"}},
		{"b > a", &comparisonPattern{left: 1, right: 0, op: ">"}},
		{"a <= c", &comparisonPattern{left: 0, right: 2, op: "<="}},
		{"c >= b", &comparisonPattern{left: 2, right: 1, op: ">="}},
		{"a != b", &comparisonPattern{left: 0, right: 1, op: "!="}},
		{"not a = b", &comparisonPattern{left: 0, right: 1, op: "!="}},
		{"a not < b", &comparisonPattern{left: 0, right: 1, op: ">="}},
		{"not a != b", nil},
		{"a = b", nil},
		{"a < a", nil},
		{"a < d", nil},
		{"a < 3", nil},
		{"a.b < c", nil},
		{"a in b", nil},
		{"a < b and b < c", nil},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got := detectComparison(mustParse(t, tt.body), vars)
			if diff := pretty.Compare(got, tt.want); diff != "" {
				t.Errorf("detectComparison(%q) (-got +want):\n%s", tt.body, diff)
			}
		})
	}
}

func numberRange(from, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(from + i)
	}
	return out
}

// naiveSatisfying filters the full cross product, which is what the
// optimizer must reproduce.
func naiveSatisfying(domains [][]float64, p *comparisonPattern) []Tuple {
	values := make([][]any, len(domains))
	for i, d := range domains {
		for _, f := range d {
			values[i] = append(values[i], f)
		}
	}
	var out []Tuple
	for _, tuple := range cartesian(values) {
		if compareNumbers(p.op, tuple[p.left].(float64), tuple[p.right].(float64)) {
			out = append(out, tuple)
		}
	}
	return out
}

func sortedKeys(tuples []Tuple) []string {
	keys := make([]string, len(tuples))
	for i, t := range tuples {
		keys[i] = tupleKey(t)
	}
	sort.Strings(keys)
	return keys
}

func TestGenerateSatisfyingMatchesFilter(t *testing.T) {
	ops := []string{"<", ">", "<=", ">=", "!="}
	sizes := [][2]int{{1, 1}, {3, 7}, {10, 10}, {50, 50}}

	for _, op := range ops {
		for _, size := range sizes {
			domains := [][]float64{numberRange(-size[0]/2, size[0]), numberRange(-3, size[1])}
			p := &comparisonPattern{left: 0, right: 1, op: op}

			fast := generateSatisfying(domains, p)
			slow := naiveSatisfying(domains, p)
			if diff := pretty.Compare(sortedKeys(fast), sortedKeys(slow)); diff != "" {
				t.Errorf("op %s, %dx%d: optimized and filtered results differ:\n%s", op, size[0], size[1], diff)
			}
			if n := countSatisfying(domains, p); n != len(slow) {
				t.Errorf("op %s, %dx%d: countSatisfying = %d, want %d", op, size[0], size[1], n, len(slow))
			}
		}
	}
}

func TestGenerateSatisfyingWithExtraVariables(t *testing.T) {
	domains := [][]float64{{1, 2}, {0, 1, 2, 3}, {5, 6, 7}}
	// c < a, with b unconstrained in the middle
	p := &comparisonPattern{left: 2, right: 0, op: "<"}

	fast := generateSatisfying(domains, p)
	slow := naiveSatisfying(domains, p)
	if diff := pretty.Compare(sortedKeys(fast), sortedKeys(slow)); diff != "" {
		t.Errorf("results differ:\n%s\nfast: %s", diff, spew.Sdump(fast))
	}
	if len(fast) != 0 {
		t.Errorf("no c in 5..7 is below a in 1..2, got %d tuples", len(fast))
	}

	p = &comparisonPattern{left: 0, right: 2, op: "<"}
	fast = generateSatisfying(domains, p)
	if len(fast) != 2*4*3 {
		t.Errorf("every a is below every c: want 24 tuples, got %d", len(fast))
	}
	for _, tuple := range fast {
		if len(tuple) != 3 {
			t.Fatalf("tuple %v should have one position per variable", tuple)
		}
	}
}

func TestCartesian(t *testing.T) {
	got := cartesian([][]any{{1.0, 2.0}, {"a", "b"}})
	want := []Tuple{{1.0, "a"}, {1.0, "b"}, {2.0, "a"}, {2.0, "b"}}
	if diff := pretty.Compare(got, want); diff != "" {
		t.Errorf("cartesian (-got +want):\n%s", diff)
	}
	if got := cartesian([][]any{{1.0}, {}}); len(got) != 0 {
		t.Errorf("an empty domain should give no combinations, got %v", got)
	}
	if got := cartesian(nil); len(got) != 1 || len(got[0]) != 0 {
		t.Errorf("no domains should give one empty combination, got %v", got)
	}
}

func TestForEachCombinationStopsEarly(t *testing.T) {
	calls := 0
	err := forEachCombination([][]any{{1.0, 2.0, 3.0}, {1.0, 2.0}}, func(Tuple) (bool, error) {
		calls++
		return calls < 4, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}
