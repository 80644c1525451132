package evaluator

import (
	"github.com/sambeau/forgeval/pkg/forge/ast"
)

// comparisonPattern is a body of the form `vars[left] op vars[right]`.
type comparisonPattern struct {
	left  int
	right int
	op    string // one of < > <= >= !=
}

// negatedOps maps a comparison to the one that holds when it does not.
var negatedOps = map[string]string{
	"<":  ">=",
	">":  "<=",
	"<=": ">",
	">=": "<",
	"=":  "!=",
}

// detectComparison recognizes bodies that compare two distinct bound
// variables with an ordering or inequality, possibly under `not`. It returns
// nil for anything else.
func detectComparison(body ast.Expression, vars []string) *comparisonPattern {
	negate := false
	if pe, ok := body.(*ast.PrefixExpression); ok && pe.Operator == "not" {
		negate = true
		body = pe.Right
	}

	ce, ok := body.(*ast.CompareExpression)
	if !ok {
		return nil
	}
	left, ok := ce.Left.(*ast.Identifier)
	if !ok {
		return nil
	}
	right, ok := ce.Right.(*ast.Identifier)
	if !ok {
		return nil
	}

	op := ce.Operator
	if _, known := negatedOps[op]; !known {
		return nil
	}
	if ce.Negated != negate {
		op = negatedOps[op]
	}
	if op == "=" {
		return nil
	}

	li, ri := indexOf(vars, left.Value), indexOf(vars, right.Value)
	if li < 0 || ri < 0 || li == ri {
		return nil
	}
	return &comparisonPattern{left: li, right: ri, op: op}
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// numericDomains returns the domains as plain numbers when every value is
// a number.
func numericDomains(values [][]any) ([][]float64, bool) {
	out := make([][]float64, len(values))
	for i, vals := range values {
		nums := make([]float64, len(vals))
		for j, v := range vals {
			f, ok := v.(float64)
			if !ok {
				return nil, false
			}
			nums[j] = f
		}
		out[i] = nums
	}
	return out, true
}

func compareNumbers(op string, a, b float64) bool {
	switch op {
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	case "!=":
		return a != b
	}
	return false
}

// generateSatisfying enumerates the assignments for which the pattern
// holds: each satisfying (left, right) pair, crossed with every combination
// of the other variables. Positions in each tuple follow variable order.
func generateSatisfying(domains [][]float64, p *comparisonPattern) []Tuple {
	var others []int
	for i := range domains {
		if i != p.left && i != p.right {
			others = append(others, i)
		}
	}
	otherDomains := make([][]any, len(others))
	for k, i := range others {
		vals := make([]any, len(domains[i]))
		for j, f := range domains[i] {
			vals[j] = f
		}
		otherDomains[k] = vals
	}
	rest := cartesian(otherDomains)

	var out []Tuple
	for _, a := range domains[p.left] {
		for _, b := range domains[p.right] {
			if !compareNumbers(p.op, a, b) {
				continue
			}
			for _, combo := range rest {
				t := make(Tuple, len(domains))
				t[p.left] = a
				t[p.right] = b
				for k, i := range others {
					t[i] = combo[k]
				}
				out = append(out, t)
			}
		}
	}
	return out
}

// cartesian returns every combination of one value from each domain, the
// first domain varying slowest. No domains yields one empty combination.
func cartesian(domains [][]any) []Tuple {
	result := []Tuple{{}}
	for _, d := range domains {
		if len(d) == 0 {
			return nil
		}
		next := make([]Tuple, 0, len(result)*len(d))
		for _, existing := range result {
			for _, v := range d {
				t := make(Tuple, len(existing), len(existing)+1)
				copy(t, existing)
				next = append(next, append(t, v))
			}
		}
		result = next
	}
	return result
}
