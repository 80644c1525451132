// Package synth finds a forge expression that selects given atoms, or
// given pairs of atoms, in every example instance.
//
// The search is enumerative and breadth first. Candidates are built from
// the identifiers every instance shares, combined with closure, transpose,
// set operators, joins and simple comprehensions, and each candidate is
// checked against all examples with the evaluator before it is expanded.
package synth

import (
	"errors"
	"sort"
	"strings"

	"github.com/sambeau/forgeval/pkg/forge/ast"
	"github.com/sambeau/forgeval/pkg/forge/evaluator"
	"github.com/sambeau/forgeval/pkg/forge/instance"
	"github.com/sambeau/forgeval/pkg/forge/parser"
)

// DefaultMaxDepth bounds how many operators the search stacks on top of
// the base identifiers.
const DefaultMaxDepth = 3

var (
	// ErrNoSynthesis is returned when no candidate within the depth bound
	// matches every example.
	ErrNoSynthesis = errors.New("unable to synthesize an expression matching all examples")
	// ErrNoExamples is returned for an empty example list.
	ErrNoExamples = errors.New("no examples provided for synthesis")
	// ErrNoIdentifiers is returned when the instances share no names.
	ErrNoIdentifiers = errors.New("no shared identifiers available across the instances")
)

// SelectionExample is a set of atom ids to be selected from an instance.
type SelectionExample struct {
	Instance instance.DataInstance
	Atoms    []string
}

// PairExample is a set of (first, second) atom id pairs to be selected
// from an instance.
type PairExample struct {
	Instance instance.DataInstance
	Pairs    [][2]string
}

type options struct {
	maxDepth int
}

// Option configures a synthesis run.
type Option func(*options)

// WithMaxDepth sets the depth bound. The default is DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		o.maxDepth = n
	}
}

func buildOptions(opts []Option) options {
	o := options{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// normalizer turns an evaluation result into a set of keys, or reports
// that the result has the wrong shape.
type normalizer func(evaluator.Value) (map[string]bool, bool)

type example struct {
	inst   instance.DataInstance
	eval   *evaluator.Evaluator
	target map[string]bool
}

// SynthesizeSelector returns an expression that evaluates to exactly the
// given atoms in every example.
func SynthesizeSelector(examples []SelectionExample, opts ...Option) (string, error) {
	e, err := synthesize(selectionExamples(examples), normalizeUnary, buildOptions(opts))
	if err != nil {
		return "", err
	}
	return e.String(), nil
}

// SynthesizeBinaryRelation returns an expression that evaluates to exactly
// the given pairs in every example.
func SynthesizeBinaryRelation(examples []PairExample, opts ...Option) (string, error) {
	e, err := synthesize(pairExamples(examples), normalizeBinary, buildOptions(opts))
	if err != nil {
		return "", err
	}
	return e.String(), nil
}

func selectionExamples(in []SelectionExample) []*example {
	out := make([]*example, len(in))
	for i, ex := range in {
		target := make(map[string]bool, len(ex.Atoms))
		for _, a := range ex.Atoms {
			target[a] = true
		}
		out[i] = &example{inst: ex.Instance, target: target}
	}
	return out
}

func pairExamples(in []PairExample) []*example {
	out := make([]*example, len(in))
	for i, ex := range in {
		target := make(map[string]bool, len(ex.Pairs))
		for _, p := range ex.Pairs {
			target[pairKey(p[0], p[1])] = true
		}
		out[i] = &example{inst: ex.Instance, target: target}
	}
	return out
}

func pairKey(a, b string) string {
	return a + "\x00" + b
}

// attachEvaluators gives every example an evaluator, sharing one between
// examples over the same instance.
func attachEvaluators(examples []*example) {
	byInstance := make(map[instance.DataInstance]*evaluator.Evaluator)
	for _, ex := range examples {
		ev, ok := byInstance[ex.inst]
		if !ok {
			ev = evaluator.New(ex.inst)
			byInstance[ex.inst] = ev
		}
		ex.eval = ev
	}
}

func synthesize(examples []*example, norm normalizer, o options) (*expr, error) {
	if len(examples) == 0 {
		return nil, ErrNoExamples
	}
	attachEvaluators(examples)

	insts := make([]instance.DataInstance, len(examples))
	for i, ex := range examples {
		insts[i] = ex.inst
	}
	names := newNameTable(insts)

	base := names.baseExprs()
	if len(base) == 0 {
		return nil, ErrNoIdentifiers
	}
	for _, e := range base {
		if matches(e, examples, norm) {
			return e, nil
		}
	}

	semantic := names.semanticJoins()
	for _, e := range semantic {
		if matches(e, examples, norm) {
			return e, nil
		}
	}

	s := &search{
		queued:  make(map[string]bool),
		visited: make(map[string]bool),
	}
	for _, e := range semantic {
		s.visited[e.String()] = true
	}
	for _, e := range base {
		s.enqueue(e, 0)
	}

	for len(s.queue) > 0 {
		cur := s.queue[0]
		s.queue = s.queue[1:]
		key := cur.expr.String()
		delete(s.queued, key)
		if s.visited[key] {
			continue
		}
		s.visited[key] = true

		if matches(cur.expr, examples, norm) {
			return cur.expr, nil
		}
		if cur.depth >= o.maxDepth {
			continue
		}
		s.expand(cur, base, names, o.maxDepth)
	}
	return nil, ErrNoSynthesis
}

type workItem struct {
	expr  *expr
	depth int
}

type search struct {
	queue   []workItem
	queued  map[string]bool
	visited map[string]bool
}

func (s *search) enqueue(e *expr, depth int) {
	key := e.String()
	if s.visited[key] || s.queued[key] {
		return
	}
	s.queue = append(s.queue, workItem{expr: e, depth: depth})
	s.queued[key] = true
}

// expand enqueues every candidate one step larger than cur.
func (s *search) expand(cur workItem, pool []*expr, names *nameTable, maxDepth int) {
	next := cur.depth + 1
	s.enqueue(prefix(kindClosure, cur.expr), next)
	s.enqueue(prefix(kindReflexiveClosure, cur.expr), next)
	s.enqueue(prefix(kindTranspose, cur.expr), next)

	curKey := cur.expr.String()
	for _, other := range pool {
		otherKey := other.String()

		// + and & commute, so only one operand order is tried.
		l, r := cur.expr, other
		if otherKey < curKey {
			l, r = other, cur.expr
		}
		s.enqueue(binary(kindUnion, l, r), next)
		s.enqueue(binary(kindIntersection, l, r), next)

		s.enqueue(binary(kindDifference, cur.expr, other), next)
		if curKey != otherKey {
			s.enqueue(binary(kindDifference, other, cur.expr), next)
		}
		s.enqueue(binary(kindJoin, cur.expr, other), next)
		s.enqueue(binary(kindJoin, other, cur.expr), next)
	}

	if cur.depth+2 > maxDepth {
		return
	}
	v := ident("v")
	for _, domain := range pool {
		if names.classify(domain.name) != typeName {
			continue
		}
		s.enqueue(comprehension("v", domain, binary(kindIn, v, cur.expr)), cur.depth+2)
		for _, rel := range pool {
			if names.classify(rel.name) != relationName {
				continue
			}
			body := binary(kindIn, binary(kindJoin, v, rel), cur.expr)
			s.enqueue(comprehension("v", domain, body), cur.depth+2)
		}
	}
}

func matches(e *expr, examples []*example, norm normalizer) bool {
	src := e.String()
	for _, ex := range examples {
		got, ok := evaluate(src, ex.eval, norm)
		if !ok || !sameKeys(got, ex.target) {
			return false
		}
	}
	return true
}

func evaluate(src string, ev *evaluator.Evaluator, norm normalizer) (map[string]bool, bool) {
	v, err := ev.EvaluateString(src)
	if err != nil {
		return nil, false
	}
	return norm(v)
}

func sameKeys(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// normalizeUnary accepts a single string or number, or a set of 1-tuples
// of strings and numbers.
func normalizeUnary(v evaluator.Value) (map[string]bool, bool) {
	switch v := v.(type) {
	case evaluator.Scalar:
		if _, isBool := v.Value.(bool); isBool {
			return nil, false
		}
		return map[string]bool{v.String(): true}, true
	case evaluator.TupleSet:
		out := make(map[string]bool, len(v))
		for _, t := range v {
			if len(t) != 1 {
				return nil, false
			}
			s, ok := atomString(t[0])
			if !ok {
				return nil, false
			}
			out[s] = true
		}
		return out, true
	}
	return nil, false
}

// normalizeBinary accepts a set of 2-tuples of strings and numbers.
func normalizeBinary(v evaluator.Value) (map[string]bool, bool) {
	ts, ok := v.(evaluator.TupleSet)
	if !ok {
		return nil, false
	}
	out := make(map[string]bool, len(ts))
	for _, t := range ts {
		if len(t) != 2 {
			return nil, false
		}
		a, ok := atomString(t[0])
		if !ok {
			return nil, false
		}
		b, ok := atomString(t[1])
		if !ok {
			return nil, false
		}
		out[pairKey(a, b)] = true
	}
	return out, true
}

func atomString(v any) (string, bool) {
	switch v.(type) {
	case string, float64:
		return evaluator.Scalar{Value: v}.String(), true
	}
	return "", false
}

type nameClass int

const (
	relationName nameClass = iota
	typeName
	builtinName
	otherName
)

// nameTable holds the type ids and relation names common to every
// instance.
type nameTable struct {
	insts     []instance.DataInstance
	relations map[string]bool
	types     map[string]bool
}

func newNameTable(insts []instance.DataInstance) *nameTable {
	nt := &nameTable{insts: insts}
	for i, inst := range insts {
		rels := map[string]bool{}
		for _, r := range inst.Relations() {
			if isIdentifier(r.Name) {
				rels[r.Name] = true
			}
		}
		types := map[string]bool{}
		for _, t := range inst.Types() {
			if isIdentifier(t.ID) {
				types[t.ID] = true
			}
		}
		if i == 0 {
			nt.relations, nt.types = rels, types
			continue
		}
		nt.relations = intersect(nt.relations, rels)
		nt.types = intersect(nt.types, types)
	}
	return nt
}

func intersect(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

// isIdentifier reports whether name parses back as a single identifier.
// Relation names like no-field-guard do not and cannot be referenced.
func isIdentifier(name string) bool {
	e, err := parser.ParseExpression(name)
	if err != nil {
		return false
	}
	id, ok := e.(*ast.Identifier)
	return ok && id.Value == name
}

func (nt *nameTable) classify(name string) nameClass {
	switch {
	case name == "univ" || name == "iden":
		return builtinName
	case nt.relations[name]:
		return relationName
	case nt.types[name]:
		return typeName
	}
	return otherName
}

// baseExprs lists the shared names plus univ and iden: relations first,
// then types, then the builtins, alphabetical within each group.
func (nt *nameTable) baseExprs() []*expr {
	seen := map[string]bool{"univ": true, "iden": true}
	for name := range nt.relations {
		seen[name] = true
	}
	for name := range nt.types {
		seen[name] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := nt.classify(names[i]), nt.classify(names[j])
		if ci != cj {
			return ci < cj
		}
		li, lj := strings.ToLower(names[i]), strings.ToLower(names[j])
		if li != lj {
			return li < lj
		}
		return names[i] < names[j]
	})

	out := make([]*expr, len(names))
	for i, name := range names {
		out[i] = ident(name)
	}
	return out
}

// semanticJoins builds Type.relation for types compatible with a
// relation's first column, then relation.Type for types compatible with
// its last column. Signatures are read from the first instance.
func (nt *nameTable) semanticJoins() []*expr {
	first := nt.insts[0]
	var out []*expr
	seen := map[string]bool{}
	add := func(e *expr) {
		if key := e.String(); !seen[key] {
			seen[key] = true
			out = append(out, e)
		}
	}

	rels := sortedKeys(nt.relations)
	types := sortedKeys(nt.types)

	for _, name := range rels {
		sig := signature(first, name)
		if len(sig) < 2 {
			continue
		}
		for _, t := range types {
			if compatible(first, t, sig[0]) {
				add(binary(kindJoin, ident(t), ident(name)))
			}
		}
	}
	for _, name := range rels {
		sig := signature(first, name)
		if len(sig) < 2 {
			continue
		}
		for _, t := range types {
			if compatible(first, t, sig[len(sig)-1]) {
				add(binary(kindJoin, ident(name), ident(t)))
			}
		}
	}
	return out
}

func signature(inst instance.DataInstance, name string) []string {
	for _, r := range inst.Relations() {
		if r.Name == name {
			return r.Types
		}
	}
	return nil
}

// compatible reports whether typeID is column, a subtype of it, or one of
// its supertypes.
func compatible(inst instance.DataInstance, typeID, column string) bool {
	if typeID == column {
		return true
	}
	for _, t := range inst.Types() {
		switch t.ID {
		case typeID:
			if contains(t.Ancestry, column) {
				return true
			}
		case column:
			if contains(t.Ancestry, typeID) {
				return true
			}
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
