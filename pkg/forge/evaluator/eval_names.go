package evaluator

import (
	"regexp"
)

// labelPattern matches names that may stand for themselves when nothing
// else claims them, e.g. `@:c = Black`.
var labelPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// resolveName looks a name up in order: variables, true/false, the type of
// that name, the atom of that name, subtypes, relations, builtins, and
// finally a bare label.
func (e *Evaluator) resolveName(name string) (Value, error) {
	if v, ok := e.env.lookup(name); ok {
		return v, nil
	}

	switch name {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	}

	var (
		found   []Tuple
		matched bool
	)

	if t, ok := e.types[name]; ok {
		matched = true
		for _, a := range t.Atoms {
			found = append(found, Tuple{coerceAtom(a.ID)})
		}
	}

	if _, ok := e.atoms[name]; ok {
		matched = true
		found = []Tuple{{coerceAtom(name)}}
	}

	if sub, ok := e.subtypeAtoms(name); ok {
		matched = true
		found = append(found, sub...)
	}

	if rel, ok := e.index.lookup(name); ok {
		return rel, nil
	}

	if matched {
		return dedupe(found), nil
	}

	if IsBuiltin(name) {
		return String(name), nil
	}

	if labelPattern.MatchString(name) {
		return Scalar{Value: name, label: true}, nil
	}

	return nil, &NameNotFoundError{Name: name}
}

// subtypeAtoms collects the atoms of every type below name in the type
// hierarchy. ok is false when no type has name as an ancestor.
func (e *Evaluator) subtypeAtoms(name string) ([]Tuple, bool) {
	if len(e.subtypes[name]) == 0 {
		return nil, false
	}

	var out []Tuple
	visited := map[string]bool{}
	stack := []string{name}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true

		for _, t := range e.subtypes[cur] {
			for _, a := range t.Atoms {
				out = append(out, Tuple{coerceAtom(a.ID)})
			}
			stack = append(stack, t.ID)
		}
	}
	return out, true
}

// isGlobalName reports whether name refers to something in the instance or
// a builtin rather than a variable.
func (e *Evaluator) isGlobalName(name string) bool {
	switch name {
	case "true", "false":
		return true
	}
	if _, ok := e.types[name]; ok {
		return true
	}
	if _, ok := e.atoms[name]; ok {
		return true
	}
	if _, ok := e.subtypes[name]; ok {
		return true
	}
	return e.index.has(name) || IsBuiltin(name)
}

// evalConstant returns none, univ or iden.
func (e *Evaluator) evalConstant(name string) Value {
	switch name {
	case "univ":
		return e.universe()
	case "iden":
		return e.identity()
	}
	return TupleSet{}
}

// universe is every atom of the instance as a unary relation.
func (e *Evaluator) universe() TupleSet {
	atoms := e.inst.Atoms()
	out := make([]Tuple, 0, len(atoms))
	for _, a := range atoms {
		out = append(out, Tuple{coerceAtom(a.ID)})
	}
	return dedupe(out)
}

// identity pairs every atom with itself.
func (e *Evaluator) identity() TupleSet {
	univ := e.universe()
	out := make(TupleSet, len(univ))
	for i, t := range univ {
		out[i] = Tuple{t[0], t[0]}
	}
	return out
}
