package evaluator

import (
	"github.com/sambeau/forgeval/pkg/forge/instance"
)

// relationIndex holds every relation of an instance with its atoms coerced,
// plus a first-column index used by joins. It is built once, on first use.
type relationIndex struct {
	inst   instance.DataInstance
	built  bool
	tuples map[string]TupleSet
	join   map[string]map[any][]Tuple
}

func newRelationIndex(inst instance.DataInstance) *relationIndex {
	return &relationIndex{inst: inst}
}

func (ri *relationIndex) build() {
	if ri.built {
		return
	}
	ri.built = true
	ri.tuples = make(map[string]TupleSet)
	ri.join = make(map[string]map[any][]Tuple)

	for _, rel := range ri.inst.Relations() {
		tuples := make([]Tuple, 0, len(rel.Tuples))
		for _, t := range rel.Tuples {
			tuples = append(tuples, coerceTuple(t.Atoms))
		}
		set := dedupe(tuples)
		ri.tuples[rel.Name] = set
		ri.join[rel.Name] = indexFirstColumn(set)
	}
}

// lookup returns the coerced tuples of the relation called name.
func (ri *relationIndex) lookup(name string) (TupleSet, bool) {
	ri.build()
	ts, ok := ri.tuples[name]
	return ts, ok
}

// joinIndex returns the relation's tuples keyed by their first atom.
func (ri *relationIndex) joinIndex(name string) (map[any][]Tuple, bool) {
	ri.build()
	idx, ok := ri.join[name]
	return idx, ok
}

func (ri *relationIndex) has(name string) bool {
	ri.build()
	_, ok := ri.tuples[name]
	return ok
}

// indexFirstColumn groups tuples by their first element. Atoms are
// comparable, so the number 1 and the string "1" land in different buckets.
func indexFirstColumn(ts TupleSet) map[any][]Tuple {
	idx := make(map[any][]Tuple, len(ts))
	for _, t := range ts {
		if len(t) == 0 {
			continue
		}
		idx[t[0]] = append(idx[t[0]], t)
	}
	return idx
}
