package instance

import (
	"strconv"

	"github.com/hashicorp/go-multierror"

	ferrors "github.com/sambeau/forgeval/pkg/forge/errors"
)

// Validate checks the instance for structural problems and returns all of
// them at once, or nil.
func (inst *Instance) Validate() error {
	var result *multierror.Error

	seenTypes := make(map[string]bool)
	for _, t := range inst.types {
		if seenTypes[t.ID] {
			result = multierror.Append(result, ferrors.New("INST-0001", map[string]any{"ID": t.ID}))
		}
		seenTypes[t.ID] = true

		// An empty ancestry is allowed for roots such as univ.
		if len(t.Ancestry) > 0 && t.Ancestry[0] != t.ID {
			result = multierror.Append(result, ferrors.New("INST-0005", map[string]any{"ID": t.ID}))
		}
	}

	seenRelations := make(map[string]bool)
	for _, r := range inst.relations {
		if seenRelations[r.Name] {
			result = multierror.Append(result, ferrors.New("INST-0002", map[string]any{"Name": r.Name}))
		}
		seenRelations[r.Name] = true

		for i, tuple := range r.Tuples {
			if len(tuple.Atoms) != r.Arity() {
				result = multierror.Append(result, ferrors.New("INST-0003", map[string]any{
					"Relation": r.Name,
					"Index":    i,
					"Got":      len(tuple.Atoms),
					"Expected": r.Arity(),
				}))
				continue
			}
			for _, atom := range tuple.Atoms {
				if _, ok := inst.atomByID[atom]; ok || isLiteralAtom(atom) {
					continue
				}
				result = multierror.Append(result, ferrors.New("INST-0004", map[string]any{
					"Relation": r.Name,
					"Index":    i,
					"Atom":     atom,
				}))
			}
		}
	}

	return result.ErrorOrNil()
}

// isLiteralAtom reports whether an id stands for a number or boolean and
// need not be declared.
func isLiteralAtom(id string) bool {
	if _, err := strconv.ParseFloat(id, 64); err == nil {
		return true
	}
	switch id {
	case "true", "false", "#t", "#f":
		return true
	}
	return false
}
