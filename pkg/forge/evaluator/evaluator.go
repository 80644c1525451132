// Package evaluator interprets forge expressions against a data instance.
//
// Results are either a Scalar (string, number or boolean) or a TupleSet.
// Every node's result is memoized under the current values of the node's
// free variables, so re-evaluating a subexpression inside a quantifier only
// does work when a variable it depends on has changed.
package evaluator

import (
	"fmt"
	"strings"

	"github.com/sambeau/forgeval/pkg/forge/ast"
	"github.com/sambeau/forgeval/pkg/forge/instance"
	"github.com/sambeau/forgeval/pkg/forge/parser"
)

// Evaluator evaluates expressions against one instance. It is not safe for
// concurrent use; create one per goroutine or guard it with a lock.
type Evaluator struct {
	inst  instance.DataInstance
	index *relationIndex
	env   *environment

	capacity int
	cache    *boundedCache[ast.Expression, map[string]Value]
	freeVars *boundedCache[freeVarKey, []string]
	analyzer *freeVarAnalyzer

	types    map[string]*instance.Type
	atoms    map[string]*instance.Atom
	subtypes map[string][]*instance.Type

	hits   uint64
	misses uint64
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCacheCapacity sets how many AST nodes keep memoized results. Zero or
// less disables memoization.
func WithCacheCapacity(n int) Option {
	return func(e *Evaluator) {
		e.capacity = n
	}
}

// New creates an evaluator for inst.
func New(inst instance.DataInstance, opts ...Option) *Evaluator {
	e := &Evaluator{
		inst:     inst,
		index:    newRelationIndex(inst),
		env:      &environment{},
		capacity: DefaultCacheCapacity,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.cache = newBoundedCache[ast.Expression, map[string]Value](e.capacity)
	// Free-variable sets are only needed to build cache keys.
	e.freeVars = newBoundedCache[freeVarKey, []string](e.capacity * 8)
	e.analyzer = &freeVarAnalyzer{isGlobal: e.isGlobalName}
	e.loadNames()
	return e
}

func (e *Evaluator) loadNames() {
	e.types = make(map[string]*instance.Type)
	e.atoms = make(map[string]*instance.Atom)
	e.subtypes = make(map[string][]*instance.Type)

	for _, t := range e.inst.Types() {
		if _, dup := e.types[t.ID]; !dup {
			e.types[t.ID] = t
		}
		for _, ancestor := range t.Ancestry {
			if ancestor != t.ID {
				e.subtypes[ancestor] = append(e.subtypes[ancestor], t)
			}
		}
	}
	for _, a := range e.inst.Atoms() {
		if _, dup := e.atoms[a.ID]; !dup {
			e.atoms[a.ID] = a
		}
	}
}

// Instance returns the instance the evaluator reads.
func (e *Evaluator) Instance() instance.DataInstance {
	return e.inst
}

// Evaluate evaluates expr at top level. A name that resolves to nothing
// yields the empty set.
func (e *Evaluator) Evaluate(expr ast.Expression) (Value, error) {
	return e.EvaluateWith(expr, nil)
}

// EvaluateWith evaluates expr with bindings visible as variables. Lookups
// from inside expr see bindings but nothing bound outside them.
func (e *Evaluator) EvaluateWith(expr ast.Expression, bindings map[string]Value) (Value, error) {
	depth := e.env.depth()
	defer e.env.truncate(depth)

	e.env.push(&frame{kind: boundaryFrame, vars: bindings})

	val, err := e.eval(expr)
	if err != nil {
		if IsNameNotFound(err) {
			return TupleSet{}, nil
		}
		return nil, err
	}
	if s, ok := val.(Scalar); ok && s.label {
		return TupleSet{}, nil
	}
	return val, nil
}

// EvaluateString parses and evaluates src. Failures are returned as an
// *ExpressionError carrying src.
func (e *Evaluator) EvaluateString(src string) (Value, error) {
	expr, err := parser.ParseExpression(src)
	if err != nil {
		return nil, &ExpressionError{Expression: src, Parse: true, Err: err}
	}
	val, err := e.Evaluate(expr)
	if err != nil {
		return nil, &ExpressionError{Expression: src, Err: err}
	}
	return val, nil
}

// Stats reports memoization counters.
func (e *Evaluator) Stats() CacheStats {
	return CacheStats{
		Capacity: e.capacity,
		Entries:  e.cache.len(),
		Hits:     e.hits,
		Misses:   e.misses,
	}
}

// Reset drops every memoized result.
func (e *Evaluator) Reset() {
	e.cache.purge()
	e.freeVars.purge()
	e.hits, e.misses = 0, 0
}

// eval evaluates node, consulting and filling the memoization cache.
func (e *Evaluator) eval(node ast.Expression) (Value, error) {
	if e.cache.lru == nil {
		return e.evalNode(node)
	}

	key := e.cacheKey(e.freeVariables(node))
	entries, cached := e.cache.get(node)
	if cached {
		if v, ok := entries[key]; ok {
			e.hits++
			return v, nil
		}
	}
	e.misses++

	val, err := e.evalNode(node)
	if err != nil {
		return nil, err
	}

	if !cached {
		entries = make(map[string]Value)
		e.cache.set(node, entries)
	}
	entries[key] = val
	return val, nil
}

// freeVarKey identifies a node's free-variable set. The same node has
// different free names when a variable hides a global of the same name, so
// the hidden names are part of the key.
type freeVarKey struct {
	node   ast.Expression
	shadow string
}

// freeVariables returns node's free names, analyzing its subtree the first
// time it is seen with the current set of hidden globals.
func (e *Evaluator) freeVariables(node ast.Expression) []string {
	shadow := e.env.shadowing(e.isGlobalName)
	if names, ok := e.freeVars.get(freeVarKey{node, shadow}); ok {
		return names
	}
	all := e.analyzer.analyze(node, e.env.visibleNames())
	for n, names := range all {
		e.freeVars.set(freeVarKey{n, shadow}, names)
	}
	return all[node]
}

// cacheKey joins the current bindings of names as name=value pairs. Names
// with no binding are left out.
func (e *Evaluator) cacheKey(names []string) string {
	var sb strings.Builder
	for _, name := range names {
		v, ok := e.env.lookup(name)
		if !ok {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(valueKey(v))
	}
	return sb.String()
}

// evalNode dispatches on the node kind.
func (e *Evaluator) evalNode(node ast.Expression) (Value, error) {
	switch node := node.(type) {
	case *ast.Identifier:
		return e.resolveName(node.Value)

	case *ast.NumberLiteral:
		return Number(node.Value), nil

	case *ast.StringLiteral:
		return String(node.Value), nil

	case *ast.BooleanLiteral:
		return Bool(node.Value), nil

	case *ast.ConstantExpression:
		return e.evalConstant(node.Name), nil

	case *ast.PrefixExpression:
		return e.evalPrefix(node)

	case *ast.MultiplicityExpression:
		return e.evalMultiplicity(node)

	case *ast.InfixExpression:
		return e.evalInfix(node)

	case *ast.CompareExpression:
		return e.evalCompare(node)

	case *ast.IfExpression:
		return e.evalIf(node)

	case *ast.BoxJoinExpression:
		return e.evalBoxJoin(node)

	case *ast.QuantifiedExpression:
		return e.evalQuantified(node)

	case *ast.ComprehensionExpression:
		return e.evalComprehension(node)

	case *ast.BlockExpression:
		return e.evalBlock(node)

	case *ast.PrimeExpression:
		return nil, newUnsupportedErrorAt("Primed Expression (`'`)", node.Token)

	case *ast.LetExpression:
		if node.Keyword == "bind" {
			return nil, newUnsupportedErrorAt("Bind Expression (`bind`)", node.Token)
		}
		return nil, newUnsupportedErrorAt("Let Binding (`let x = ...`)", node.Token)

	case *ast.UnsupportedExpression:
		return nil, newUnsupportedErrorAt(node.Feature, node.Token)
	}

	return nil, newUnsupportedError(fmt.Sprintf("expression %T", node))
}
