package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alexflint/go-arg"

	"github.com/sambeau/forgeval/pkg/forge/instance"
	"github.com/sambeau/forgeval/pkg/forge/synth"
)

// SynthArgs are the flags of the synth subcommand.
type SynthArgs struct {
	Instances []string `arg:"-i,--instance,separate" placeholder:"PATH" help:"instance file; repeat once per example group, or give one for all"`
	Select    string   `arg:"--select,required" placeholder:"A,B[;C,D]" help:"atoms to select, one group per instance separated by ';' (pairs as a->b with --binary)"`
	Binary    bool     `arg:"--binary" help:"synthesize a binary relation from atom pairs"`
	Depth     int      `arg:"--depth" help:"maximum expression depth"`
	Why       bool     `arg:"--why" help:"explain how the expression produces each example"`
	JSON      bool     `arg:"--json" help:"print the result as JSON"`
}

func (SynthArgs) Description() string {
	return "forgeval synth - find an expression that selects the given atoms"
}

func runSynth(args []string, stdout io.Writer) error {
	a := SynthArgs{Depth: synth.DefaultMaxDepth}
	p, err := arg.NewParser(arg.Config{Program: "forgeval synth"}, &a)
	if err != nil {
		return err
	}
	err = p.Parse(args)
	switch {
	case err == arg.ErrHelp:
		p.WriteHelp(stdout)
		return nil
	case err != nil:
		return err
	}

	if len(a.Instances) == 0 {
		return errors.New("synth needs at least one --instance")
	}
	groups := splitGroups(a.Select)
	if len(a.Instances) > 1 && len(a.Instances) != len(groups) {
		return fmt.Errorf("%d instances for %d example groups", len(a.Instances), len(groups))
	}

	insts := make([]*instance.Instance, len(a.Instances))
	for i, path := range a.Instances {
		inst, err := instance.Load(path)
		if err != nil {
			return err
		}
		insts[i] = inst
	}
	instFor := func(i int) *instance.Instance {
		if len(insts) == 1 {
			return insts[0]
		}
		return insts[i]
	}

	opts := []synth.Option{synth.WithMaxDepth(a.Depth)}
	var why *synth.Why
	if a.Binary {
		examples := make([]synth.PairExample, len(groups))
		for i, group := range groups {
			pairs, err := parsePairs(group)
			if err != nil {
				return err
			}
			examples[i] = synth.PairExample{Instance: instFor(i), Pairs: pairs}
		}
		why, err = synth.SynthesizeBinaryRelationWithWhy(examples, opts...)
	} else {
		examples := make([]synth.SelectionExample, len(groups))
		for i, group := range groups {
			examples[i] = synth.SelectionExample{Instance: instFor(i), Atoms: group}
		}
		why, err = synth.SynthesizeSelectorWithWhy(examples, opts...)
	}
	if err != nil {
		return err
	}

	switch {
	case a.JSON && a.Why:
		return writeJSON(stdout, why)
	case a.JSON:
		return writeJSON(stdout, map[string]string{"expression": why.Expression})
	case a.Why:
		fmt.Fprintln(stdout, why.Expression)
		for i, ex := range why.Examples {
			fmt.Fprintf(stdout, "\nExample %d: %s\n", i+1, strings.Join(ex.Target, ", "))
			printWhy(stdout, ex.Why, 1)
		}
	default:
		fmt.Fprintln(stdout, why.Expression)
	}
	return nil
}

// splitGroups parses "A,B;C,D" into [[A B] [C D]].
func splitGroups(s string) [][]string {
	var groups [][]string
	for _, g := range strings.Split(s, ";") {
		var atoms []string
		for _, a := range strings.Split(g, ",") {
			if a = strings.TrimSpace(a); a != "" {
				atoms = append(atoms, a)
			}
		}
		groups = append(groups, atoms)
	}
	return groups
}

func parsePairs(group []string) ([][2]string, error) {
	pairs := make([][2]string, 0, len(group))
	for _, p := range group {
		first, second, ok := strings.Cut(p, "->")
		if !ok {
			return nil, fmt.Errorf("pair %q: expected first->second", p)
		}
		pairs = append(pairs, [2]string{strings.TrimSpace(first), strings.TrimSpace(second)})
	}
	return pairs, nil
}

func printWhy(out io.Writer, node *synth.WhyNode, depth int) {
	if node == nil {
		return
	}
	result := "(no value)"
	if node.Result != nil {
		result = "{" + strings.Join(node.Result, ", ") + "}"
	}
	fmt.Fprintf(out, "%s%s [%s] = %s\n", strings.Repeat("  ", depth), node.Expression, node.Kind, result)
	for _, child := range node.Children {
		printWhy(out, child, depth+1)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
