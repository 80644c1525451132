package instance

// Builder assembles an Instance in code.
//
//	inst := instance.NewBuilder().
//		AddType("Player", []string{"Player"}).
//		AddType("X", []string{"X", "Player"}, "X0").
//		AddRelation("winner", []string{"Player"}, []string{"X0"}).
//		Build()
type Builder struct {
	types     []*Type
	relations []*Relation
	byID      map[string]*Type
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byID: make(map[string]*Type)}
}

// AddType declares a type with its ancestry (the type itself first) and the
// ids of the atoms it declares. A nil ancestry defaults to the type alone.
func (b *Builder) AddType(id string, ancestry []string, atoms ...string) *Builder {
	return b.addType(id, ancestry, false, atoms)
}

// AddBuiltinType declares a type flagged as builtin, such as Int.
func (b *Builder) AddBuiltinType(id string, ancestry []string, atoms ...string) *Builder {
	return b.addType(id, ancestry, true, atoms)
}

func (b *Builder) addType(id string, ancestry []string, builtin bool, atoms []string) *Builder {
	if ancestry == nil {
		ancestry = []string{id}
	}
	t := &Type{ID: id, Ancestry: ancestry, IsBuiltin: builtin}
	for _, a := range atoms {
		t.Atoms = append(t.Atoms, Atom{ID: a, Type: id, Label: a})
	}
	b.types = append(b.types, t)
	if _, ok := b.byID[id]; !ok {
		b.byID[id] = t
	}
	return b
}

// AddLabeledAtom adds an atom with a display label to an already declared
// type. Unknown types are declared on the fly.
func (b *Builder) AddLabeledAtom(typeID, id, label string) *Builder {
	t, ok := b.byID[typeID]
	if !ok {
		b.AddType(typeID, nil)
		t = b.byID[typeID]
	}
	t.Atoms = append(t.Atoms, Atom{ID: id, Type: typeID, Label: label})
	return b
}

// AddRelation declares a relation over the given signature. Each tuple is a
// list of atom ids.
func (b *Builder) AddRelation(name string, signature []string, tuples ...[]string) *Builder {
	r := &Relation{ID: name, Name: name, Types: signature}
	for _, atoms := range tuples {
		r.Tuples = append(r.Tuples, Tuple{Atoms: atoms, Types: signature})
	}
	b.relations = append(b.relations, r)
	return b
}

// Build returns the assembled Instance.
func (b *Builder) Build() *Instance {
	return New(b.types, b.relations)
}
