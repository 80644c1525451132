package rewrite

import "github.com/sambeau/forgeval/pkg/forge/instance"

// schema answers the questions a rewrite needs about the names it uses.
// Names resolve the way the evaluator resolves them: a relation hides a
// type or atom of the same name.
type schema struct {
	inst      instance.DataInstance
	relations map[string]*instance.Relation
	sets      map[string]bool
	atoms     map[string]bool
}

func newSchema(inst instance.DataInstance) *schema {
	s := &schema{
		inst:      inst,
		relations: make(map[string]*instance.Relation),
		sets:      make(map[string]bool),
		atoms:     make(map[string]bool),
	}
	for _, r := range inst.Relations() {
		s.relations[r.Name] = r
	}
	for _, t := range inst.Types() {
		s.sets[t.ID] = true
		for _, ancestor := range t.Ancestry {
			s.sets[ancestor] = true
		}
	}
	for _, a := range inst.Atoms() {
		s.atoms[a.ID] = true
	}
	return s
}

// binary returns the relation name resolves to when every tuple has two
// atoms.
func (s *schema) binary(name string) (*instance.Relation, bool) {
	r, ok := s.relations[name]
	if !ok || r.Arity() != 2 {
		return nil, false
	}
	for _, t := range r.Tuples {
		if len(t.Atoms) != 2 {
			return nil, false
		}
	}
	return r, true
}

// unary reports whether name evaluates to a set of atoms.
func (s *schema) unary(name string) bool {
	if name == "univ" {
		return true
	}
	if r, ok := s.relations[name]; ok {
		return r.Arity() == 1
	}
	return s.sets[name] || s.atoms[name]
}

// contains reports whether atom is a declared atom of the unary name.
func (s *schema) contains(name, atom string) bool {
	if !s.atoms[atom] {
		return false
	}
	if name == "univ" || name == atom {
		return true
	}
	if r, ok := s.relations[name]; ok {
		for _, t := range r.Tuples {
			if len(t.Atoms) == 1 && t.Atoms[0] == atom {
				return true
			}
		}
		return false
	}
	if !s.sets[name] {
		return false
	}
	t, ok := s.inst.AtomType(atom)
	if !ok {
		return false
	}
	for _, ancestor := range t.Ancestry {
		if ancestor == name {
			return true
		}
	}
	return false
}

// functional reports whether r maps each first atom to at most one second.
func functional(r *instance.Relation) bool {
	seen := make(map[string]string, len(r.Tuples))
	for _, t := range r.Tuples {
		if prev, ok := seen[t.Atoms[0]]; ok && prev != t.Atoms[1] {
			return false
		}
		seen[t.Atoms[0]] = t.Atoms[1]
	}
	return true
}

// within reports whether every tuple of r already lies in da -> db. With
// both set, every atom of r must lie in both domains, as the pairs of a
// closure of r can start and end at any of them.
func (s *schema) within(r *instance.Relation, da, db string, both bool) bool {
	for _, t := range r.Tuples {
		first, second := t.Atoms[0], t.Atoms[1]
		if both {
			if !s.contains(da, first) || !s.contains(db, first) ||
				!s.contains(da, second) || !s.contains(db, second) {
				return false
			}
			continue
		}
		if !s.contains(da, first) || !s.contains(db, second) {
			return false
		}
	}
	return true
}
