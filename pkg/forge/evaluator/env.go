package evaluator

import (
	"sort"
	"strings"
)

// frameKind distinguishes quantifier frames from predicate-argument
// boundaries. Lookups never continue past a boundary frame.
type frameKind int

const (
	quantifierFrame frameKind = iota
	boundaryFrame
)

type frame struct {
	kind frameKind
	vars map[string]Value
}

// environment is the stack of variable frames, innermost last.
type environment struct {
	frames []*frame
}

func (env *environment) push(f *frame) {
	env.frames = append(env.frames, f)
}

func (env *environment) pop() {
	env.frames = env.frames[:len(env.frames)-1]
}

// lookup searches from the innermost frame outwards and stops after the
// first boundary frame.
func (env *environment) lookup(name string) (Value, bool) {
	for i := len(env.frames) - 1; i >= 0; i-- {
		f := env.frames[i]
		if v, ok := f.vars[name]; ok {
			return v, true
		}
		if f.kind == boundaryFrame {
			break
		}
	}
	return nil, false
}

// visibleNames lists every name lookup can currently reach.
func (env *environment) visibleNames() map[string]bool {
	names := map[string]bool{}
	for i := len(env.frames) - 1; i >= 0; i-- {
		f := env.frames[i]
		for name := range f.vars {
			names[name] = true
		}
		if f.kind == boundaryFrame {
			break
		}
	}
	return names
}

// shadowing returns the sorted names lookup can reach that hide a global
// name, joined into one key. It is empty when nothing is hidden.
func (env *environment) shadowing(isGlobal func(string) bool) string {
	var names []string
	for i := len(env.frames) - 1; i >= 0; i-- {
		f := env.frames[i]
		for name := range f.vars {
			if isGlobal(name) {
				names = append(names, name)
			}
		}
		if f.kind == boundaryFrame {
			break
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return strings.Join(names, "\x00")
}

func (env *environment) depth() int { return len(env.frames) }

// truncate drops frames above depth after a failed evaluation.
func (env *environment) truncate(depth int) {
	env.frames = env.frames[:depth]
}
