package synth

import (
	"sort"
	"strings"

	"github.com/sambeau/forgeval/pkg/forge/instance"
)

// WhyNode mirrors one subexpression of a synthesized expression with what
// it evaluated to. Result is nil when the subexpression has no value of the
// expected shape in that instance.
type WhyNode struct {
	Kind       string     `json:"kind"`
	Expression string     `json:"expression"`
	Result     []string   `json:"result"`
	Children   []*WhyNode `json:"children,omitempty"`
}

// WhyExample explains the synthesized expression for one example.
type WhyExample struct {
	Instance instance.DataInstance `json:"-"`
	Target   []string              `json:"target"`
	Result   []string              `json:"result"`
	Why      *WhyNode              `json:"why"`
}

// Why is a synthesized expression with a provenance tree per example.
type Why struct {
	Expression string       `json:"expression"`
	Examples   []WhyExample `json:"examples"`
}

// SynthesizeSelectorWithWhy is SynthesizeSelector, also explaining how the
// result arises in each example.
func SynthesizeSelectorWithWhy(examples []SelectionExample, opts ...Option) (*Why, error) {
	return synthesizeWithWhy(selectionExamples(examples), normalizeUnary, buildOptions(opts))
}

// SynthesizeBinaryRelationWithWhy is SynthesizeBinaryRelation, also
// explaining how the result arises in each example. Pairs in results are
// rendered as "first->second".
func SynthesizeBinaryRelationWithWhy(examples []PairExample, opts ...Option) (*Why, error) {
	return synthesizeWithWhy(pairExamples(examples), normalizeBinary, buildOptions(opts))
}

func synthesizeWithWhy(examples []*example, norm normalizer, o options) (*Why, error) {
	e, err := synthesize(examples, norm, o)
	if err != nil {
		return nil, err
	}

	why := &Why{Expression: e.String()}
	for _, ex := range examples {
		result, _ := evaluate(e.String(), ex.eval, norm)
		why.Examples = append(why.Examples, WhyExample{
			Instance: ex.inst,
			Target:   displayKeys(ex.target),
			Result:   displayKeys(result),
			Why:      buildWhy(e, ex, norm),
		})
	}
	return why, nil
}

func buildWhy(e *expr, ex *example, norm normalizer) *WhyNode {
	result, ok := evaluate(e.String(), ex.eval, norm)
	node := &WhyNode{
		Kind:       string(e.kind),
		Expression: e.String(),
	}
	if ok {
		node.Result = displayKeys(result)
	}
	for _, child := range e.children() {
		node.Children = append(node.Children, buildWhy(child, ex, norm))
	}
	return node
}

// displayKeys sorts a result set for display, spelling pair keys as a->b.
// A nil set stays nil; an empty one becomes an empty slice.
func displayKeys(keys map[string]bool) []string {
	if keys == nil {
		return nil
	}
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, strings.Replace(k, "\x00", "->", 1))
	}
	sort.Strings(out)
	return out
}
