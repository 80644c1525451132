// Package instance holds the relational data that expressions are evaluated
// against: a finite universe of atoms partitioned into types, plus named
// relations whose tuples range over those atoms.
//
// An Instance is read-only once built. It can be assembled in code with a
// Builder, decoded from a JSON or YAML document (optionally gzip or zstd
// compressed), or read from a SQL database.
package instance

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// Atom is a single element of the universe. Label is the display label;
// decoders default a missing label to the id, and an empty one is kept.
type Atom struct {
	ID    string `json:"id" yaml:"id"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
	Label string `json:"label" yaml:"label"`
}

// Type is a signature. Ancestry lists the type itself first, then its
// supertypes up to the root.
type Type struct {
	ID        string   `json:"id" yaml:"id"`
	Ancestry  []string `json:"types" yaml:"types"`
	Atoms     []Atom   `json:"atoms" yaml:"atoms"`
	IsBuiltin bool     `json:"builtin,omitempty" yaml:"builtin,omitempty"`
}

// Tuple is an ordered list of atom ids with the type of each position.
type Tuple struct {
	Atoms []string `json:"atoms" yaml:"atoms"`
	Types []string `json:"types,omitempty" yaml:"types,omitempty"`
}

// Relation is a named set of tuples. Types is the signature; its length is
// the relation's arity.
type Relation struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Types  []string `json:"types" yaml:"types"`
	Tuples []Tuple  `json:"tuples" yaml:"tuples"`
}

// Arity returns the number of columns in the relation's signature.
func (r *Relation) Arity() int {
	return len(r.Types)
}

// DataInstance is the read-only view the evaluator consumes.
type DataInstance interface {
	Types() []*Type
	Relations() []*Relation
	Atoms() []*Atom
	AtomType(id string) (*Type, bool)
}

// Instance is the concrete DataInstance.
type Instance struct {
	types     []*Type
	relations []*Relation
	atoms     []*Atom

	typeByID  map[string]*Type
	relByName map[string]*Relation
	atomByID  map[string]*Atom
	atomOwner map[string]*Type
}

var _ DataInstance = (*Instance)(nil)

// New builds an Instance from types and relations. Lookups by id or name
// resolve to the first definition; Validate reports duplicates.
func New(types []*Type, relations []*Relation) *Instance {
	inst := &Instance{
		types:     types,
		relations: relations,
		typeByID:  make(map[string]*Type, len(types)),
		relByName: make(map[string]*Relation, len(relations)),
		atomByID:  make(map[string]*Atom),
		atomOwner: make(map[string]*Type),
	}

	for _, t := range types {
		if _, dup := inst.typeByID[t.ID]; !dup {
			inst.typeByID[t.ID] = t
		}
		for i := range t.Atoms {
			a := &t.Atoms[i]
			if a.Type == "" {
				a.Type = t.ID
			}
			if _, seen := inst.atomByID[a.ID]; seen {
				continue
			}
			inst.atomByID[a.ID] = a
			inst.atomOwner[a.ID] = t
			inst.atoms = append(inst.atoms, a)
		}
	}

	for _, r := range relations {
		if r.ID == "" {
			r.ID = r.Name
		}
		for i := range r.Tuples {
			if len(r.Tuples[i].Types) == 0 {
				r.Tuples[i].Types = r.Types
			}
		}
		if _, dup := inst.relByName[r.Name]; !dup {
			inst.relByName[r.Name] = r
		}
	}

	return inst
}

// Types returns every type in declaration order.
func (inst *Instance) Types() []*Type { return inst.types }

// Relations returns every relation in declaration order.
func (inst *Instance) Relations() []*Relation { return inst.relations }

// Atoms returns every atom, deduplicated by id; the first declaration wins.
func (inst *Instance) Atoms() []*Atom { return inst.atoms }

// AtomType returns the type that declares the atom.
func (inst *Instance) AtomType(id string) (*Type, bool) {
	t, ok := inst.atomOwner[id]
	return t, ok
}

// Type looks up a type by id.
func (inst *Instance) Type(id string) (*Type, bool) {
	t, ok := inst.typeByID[id]
	return t, ok
}

// Relation looks up a relation by name.
func (inst *Instance) Relation(name string) (*Relation, bool) {
	r, ok := inst.relByName[name]
	return r, ok
}

// Atom looks up an atom by id.
func (inst *Instance) Atom(id string) (*Atom, bool) {
	a, ok := inst.atomByID[id]
	return a, ok
}

// TypeIDs returns the ids of all types in declaration order.
func (inst *Instance) TypeIDs() []string {
	ids := make([]string, len(inst.types))
	for i, t := range inst.types {
		ids[i] = t.ID
	}
	return ids
}

// RelationNames returns the names of all relations in declaration order.
func (inst *Instance) RelationNames() []string {
	names := make([]string, len(inst.relations))
	for i, r := range inst.relations {
		names[i] = r.Name
	}
	return names
}

// MarshalJSON encodes the instance in list form, the same shape Load reads.
func (inst *Instance) MarshalJSON() ([]byte, error) {
	return json.Marshal(inst.document())
}

// Fingerprint returns the hex blake2b-256 digest of the canonical JSON
// encoding. Two instances with equal content have equal fingerprints.
func (inst *Instance) Fingerprint() string {
	data, err := json.Marshal(inst.document())
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (inst *Instance) document() *Document {
	doc := &Document{
		Types:     make(TypeList, len(inst.types)),
		Relations: make(RelationList, len(inst.relations)),
	}
	for i, t := range inst.types {
		doc.Types[i] = *t
	}
	for i, r := range inst.relations {
		doc.Relations[i] = *r
	}
	return doc
}
