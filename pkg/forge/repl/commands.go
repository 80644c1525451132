package repl

import (
	"fmt"
	"strings"

	"github.com/sanity-io/litter"

	"github.com/sambeau/forgeval/pkg/forge/ast"
	"github.com/sambeau/forgeval/pkg/forge/instance"
	"github.com/sambeau/forgeval/pkg/forge/rewrite"
)

var commandHelp = []struct{ name, text string }{
	{":help", "Show this help"},
	{":types", "List types with their atom counts"},
	{":relations", "List relations with their signatures"},
	{":atoms [type]", "List atoms, optionally of one type and its subtypes"},
	{":ast EXPR", "Show the parsed form of an expression"},
	{":rewrite EXPR", "Show how the rewriter would change an expression"},
	{":cache", "Show memoization statistics"},
	{":reload", "Load the instance again"},
	{":clear", "Drop memoized results"},
	{":json", "Toggle JSON output"},
}

func commandNames() []string {
	names := make([]string, 0, len(commandHelp)+2)
	for _, c := range commandHelp {
		names = append(names, strings.Fields(c.name)[0])
	}
	return append(names, ":h", ":?")
}

var astDumper = litter.Options{
	StripPackageNames: true,
	HidePrivateFields: true,
	HideZeroValues:    true,
}

// HandleCommand runs a meta-command that starts with ':'.
func (r *REPL) HandleCommand(cmd string) {
	name, arg, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		for _, c := range commandHelp {
			fmt.Fprintf(r.out, "  %-16s %s\n", c.name, c.text)
		}
		fmt.Fprintf(r.out, "  %-16s %s\n", "exit, quit", "Exit the REPL")

	case ":types":
		r.printTypes()

	case ":relations":
		r.printRelations()

	case ":atoms":
		r.printAtoms(arg)

	case ":ast":
		if arg == "" {
			fmt.Fprintln(r.out, "Usage: :ast EXPR")
			return
		}
		expr, err := r.session.Parse(arg)
		if err != nil {
			r.printError(arg, err)
			return
		}
		fmt.Fprintln(r.out, astDumper.Sdump(expr))

	case ":rewrite":
		if arg == "" {
			fmt.Fprintln(r.out, "Usage: :rewrite EXPR")
			return
		}
		res := rewrite.Rewrite(arg, r.session.Instance())
		if !res.Rewritten {
			fmt.Fprintln(r.out, "No rewrite applies")
			return
		}
		fmt.Fprintf(r.out, "%s\n  => %s\n", res.Pattern, res.Expression)

	case ":cache":
		stats := r.session.Stats()
		r.printer.Fprintf(r.out, "Lifetime: %s\n", r.session.Lifetime())
		r.printer.Fprintf(r.out, "Capacity: %d\n", stats.Capacity)
		r.printer.Fprintf(r.out, "Entries:  %d\n", stats.Entries)
		r.printer.Fprintf(r.out, "Hits:     %d\n", stats.Hits)
		r.printer.Fprintf(r.out, "Misses:   %d\n", stats.Misses)

	case ":reload":
		if r.opts.Reload == nil {
			fmt.Fprintln(r.out, "Nothing to reload: the instance was not loaded from a source")
			return
		}
		inst, err := r.opts.Reload()
		if err != nil {
			fmt.Fprintf(r.out, "Reload failed: %v\n", err)
			return
		}
		r.session.SetInstance(inst)
		fmt.Fprintln(r.out, "Instance reloaded")
		r.printSummary()

	case ":clear":
		r.session.ResetCache()
		fmt.Fprintln(r.out, "Cache cleared")

	case ":json":
		r.json = !r.json
		if r.json {
			fmt.Fprintln(r.out, "JSON output ON")
		} else {
			fmt.Fprintln(r.out, "JSON output OFF")
		}

	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type :help for commands)\n", name)
	}
}

// printSummary prints the size of the current instance.
func (r *REPL) printSummary() {
	inst := r.session.Instance()
	r.printer.Fprintf(r.out, "Instance: %d types, %d relations, %d atoms\n",
		len(inst.Types()), len(inst.Relations()), len(inst.Atoms()))
}

func (r *REPL) printTypes() {
	inst := r.session.Instance()
	if len(inst.Types()) == 0 {
		fmt.Fprintln(r.out, "(no types)")
		return
	}
	for _, t := range inst.Types() {
		n := len(atomsOf(inst, t.ID))
		suffix := ""
		if t.IsBuiltin {
			suffix = " builtin"
		}
		if len(t.Ancestry) > 1 {
			suffix += " extends " + t.Ancestry[1]
		}
		r.printer.Fprintf(r.out, "  %s: %d atoms%s\n", t.ID, n, suffix)
	}
}

func (r *REPL) printRelations() {
	inst := r.session.Instance()
	if len(inst.Relations()) == 0 {
		fmt.Fprintln(r.out, "(no relations)")
		return
	}
	for _, rel := range inst.Relations() {
		r.printer.Fprintf(r.out, "  %s: %s (%d tuples)\n",
			rel.Name, strings.Join(rel.Types, " -> "), len(rel.Tuples))
	}
}

func (r *REPL) printAtoms(typeID string) {
	inst := r.session.Instance()

	var atoms []*instance.Atom
	if typeID == "" {
		atoms = inst.Atoms()
	} else {
		atoms = atomsOf(inst, typeID)
	}
	if len(atoms) == 0 {
		fmt.Fprintln(r.out, "(no atoms)")
		return
	}

	for _, a := range atoms {
		if a.Label != "" && a.Label != a.ID {
			fmt.Fprintf(r.out, "  %s (%s): %s\n", a.ID, a.Label, a.Type)
		} else {
			fmt.Fprintf(r.out, "  %s: %s\n", a.ID, a.Type)
		}
	}
}

// atomsOf returns the atoms whose type is typeID or has it as an ancestor.
func atomsOf(inst instance.DataInstance, typeID string) []*instance.Atom {
	var out []*instance.Atom
	for _, a := range inst.Atoms() {
		t, ok := inst.AtomType(a.ID)
		if !ok {
			continue
		}
		for _, ancestor := range t.Ancestry {
			if ancestor == typeID {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// unknownNames returns identifiers in expr that are neither known nor bound
// by a declaration or let, in order of first appearance.
func unknownNames(expr ast.Expression, known map[string]bool) []string {
	bound := make(map[string]bool)
	ast.Walk(expr, func(node ast.Expression) bool {
		switch n := node.(type) {
		case *ast.QuantifiedExpression:
			for _, name := range ast.VarNames(n.Decls) {
				bound[name] = true
			}
		case *ast.ComprehensionExpression:
			for _, name := range ast.VarNames(n.Decls) {
				bound[name] = true
			}
		case *ast.LetExpression:
			for _, b := range n.Bindings {
				bound[b.Name.Value] = true
			}
		}
		return true
	})

	seen := make(map[string]bool)
	var out []string
	ast.Walk(expr, func(node ast.Expression) bool {
		id, ok := node.(*ast.Identifier)
		if !ok || known[id.Value] || bound[id.Value] || seen[id.Value] {
			return true
		}
		seen[id.Value] = true
		out = append(out, id.Value)
		return true
	})
	return out
}
