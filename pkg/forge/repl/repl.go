package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	ferrors "github.com/sambeau/forgeval/pkg/forge/errors"
	"github.com/sambeau/forgeval/pkg/forge/evaluator"
	"github.com/sambeau/forgeval/pkg/forge/forge"
	"github.com/sambeau/forgeval/pkg/forge/instance"
)

const PROMPT = "forge> "
const CONTINUATION_PROMPT = "...> "

const FORGE_LOGO = `
█▀▀ █▀█ █▀█ █▀▀ █▀▀
█▀░ █▄█ █▀▄ █▄█ ██▄ `

// Options configures a REPL.
type Options struct {
	Version     string
	Prompt      string // Default PROMPT
	HistoryFile string // Default $TMPDIR/.forgeval_history

	// Reload reads the instance again for :reload. Nil disables the command.
	Reload func() (instance.DataInstance, error)

	// WatchPath, when set, is an instance file reloaded on change.
	WatchPath string

	// JSON starts the REPL with JSON output on.
	JSON bool
}

// REPL reads expressions and meta-commands and prints their results.
type REPL struct {
	session *forge.Session
	out     io.Writer
	opts    Options
	json    bool
	printer *message.Printer
}

// New creates a REPL over session writing to out.
func New(session *forge.Session, out io.Writer, opts Options) *REPL {
	if opts.Prompt == "" {
		opts.Prompt = PROMPT
	}
	if opts.HistoryFile == "" {
		opts.HistoryFile = filepath.Join(os.TempDir(), ".forgeval_history")
	}
	return &REPL{
		session: session,
		out:     out,
		opts:    opts,
		json:    opts.JSON,
		printer: message.NewPrinter(language.English),
	}
}

// Start runs a REPL until the user exits or ctx is cancelled.
func Start(ctx context.Context, session *forge.Session, out io.Writer, opts Options) error {
	return New(session, out, opts).Run(ctx)
}

// Run starts line editing, history, tab completion and, when configured,
// the instance watcher, then reads input until exit or Ctrl+D.
func (r *REPL) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.opts.WatchPath != "" {
		w, err := instance.NewWatcher(r.opts.WatchPath, func(inst *instance.Instance) {
			r.session.SetInstance(inst)
		}, r.out, r.out)
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Start(ctx); err != nil {
			return err
		}
	}

	line := liner.NewLiner()
	defer line.Close()

	// Enable Ctrl+C to abort current line
	line.SetCtrlCAborts(true)

	line.SetCompleter(func(line string) []string {
		return r.complete(line)
	})

	if f, err := os.Open(r.opts.HistoryFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	defer func() {
		if f, err := os.Create(r.opts.HistoryFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintf(r.out, "%s", FORGE_LOGO)
	fmt.Fprintln(r.out, "v", r.opts.Version)
	fmt.Fprintln(r.out, "")
	r.printSummary()
	fmt.Fprintln(r.out, "Type 'exit' or Ctrl+D to quit")
	fmt.Fprintln(r.out, "Use Tab for completion, ↑↓ for history")
	fmt.Fprintln(r.out, "Type ':help' for REPL commands")
	fmt.Fprintln(r.out, "")

	var inputBuffer strings.Builder

	for {
		if ctx.Err() != nil {
			return nil
		}

		currentPrompt := r.opts.Prompt
		if inputBuffer.Len() > 0 {
			currentPrompt = CONTINUATION_PROMPT
		}
		input, err := line.Prompt(currentPrompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				// Ctrl+C - clear any buffered input and return to main prompt
				if inputBuffer.Len() > 0 {
					fmt.Fprintln(r.out, "^C (cleared)")
				} else {
					fmt.Fprintln(r.out, "^C")
				}
				inputBuffer.Reset()
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			fmt.Fprintf(r.out, "Error reading input: %v\n", err)
			continue
		}

		trimmed := strings.TrimSpace(input)
		if inputBuffer.Len() == 0 && (trimmed == "exit" || trimmed == "quit") {
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		}

		if inputBuffer.Len() == 0 && strings.HasPrefix(trimmed, ":") {
			line.AppendHistory(trimmed)
			r.HandleCommand(trimmed)
			continue
		}

		if inputBuffer.Len() == 0 && trimmed == "" {
			continue
		}

		if inputBuffer.Len() > 0 {
			inputBuffer.WriteString("\n")
		}
		inputBuffer.WriteString(input)

		fullInput := inputBuffer.String()
		if needsMoreInput(fullInput) {
			continue
		}

		line.AppendHistory(fullInput)
		r.Eval(fullInput)
		inputBuffer.Reset()
	}
}

// Eval evaluates src and prints the result or a formatted error.
func (r *REPL) Eval(src string) {
	res := r.session.Evaluate(src)

	if res.IsError() {
		r.printError(src, res.Err())
		return
	}

	if r.json {
		out, err := res.MarshalJSON()
		if err != nil {
			fmt.Fprintf(r.out, "Error encoding result: %v\n", err)
			return
		}
		fmt.Fprintln(r.out, string(out))
	} else {
		fmt.Fprintln(r.out, res.String())
	}

	if res.NoResult() {
		r.printNameHints(src)
	}
}

// printError prints an evaluation failure with the offending source line
// and any hints.
func (r *REPL) printError(src string, err error) {
	var ferr *ferrors.ForgeError
	if !errors.As(err, &ferr) {
		fmt.Fprintln(r.out, err.Error())
		return
	}

	io.WriteString(r.out, ferr.PrettyString())
	io.WriteString(r.out, "\n")
	if ferr.Line > 0 {
		lines := strings.Split(src, "\n")
		if ferr.Line <= len(lines) {
			fmt.Fprintf(r.out, "  | %s\n", lines[ferr.Line-1])
			if ferr.Column > 0 {
				fmt.Fprintf(r.out, "  | %s^\n", strings.Repeat(" ", ferr.Column-1))
			}
		}
	}
}

// printNameHints reports identifiers in src that the instance does not
// know. They evaluate to nothing, so an empty result is often a typo.
func (r *REPL) printNameHints(src string) {
	expr, err := r.session.Parse(src)
	if err != nil {
		return
	}
	known := r.knownNames()
	for _, name := range unknownNames(expr, known) {
		hint := ferrors.NewUndefinedName(name, sortedKeys(known))
		if len(hint.Hints) > 0 {
			io.WriteString(r.out, hint.PrettyString())
			io.WriteString(r.out, "\n")
		}
	}
}

// knownNames is every name the instance or the language gives meaning to.
func (r *REPL) knownNames() map[string]bool {
	inst := r.session.Instance()
	known := make(map[string]bool)
	for _, t := range inst.Types() {
		known[t.ID] = true
	}
	for _, rel := range inst.Relations() {
		known[rel.Name] = true
	}
	for _, a := range inst.Atoms() {
		known[a.ID] = true
	}
	for _, name := range evaluator.BuiltinNames() {
		known[name] = true
	}
	known["true"] = true
	known["false"] = true
	return known
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// complete returns completion suggestions for the last word of line:
// keywords, commands, relation names and type ids.
func (r *REPL) complete(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	// Don't complete if line ends with whitespace (including tabs from pasting)
	if line[len(line)-1] == ' ' || line[len(line)-1] == '\t' {
		return nil
	}

	prefix, word := splitLastWord(line)
	if word == "" {
		return nil
	}

	var candidates []string
	if strings.HasPrefix(trimmed, ":") && !strings.Contains(trimmed, " ") {
		candidates = commandNames()
	} else {
		candidates = append(candidates, ferrors.ForgeKeywords...)
		inst := r.session.Instance()
		for _, rel := range inst.Relations() {
			candidates = append(candidates, rel.Name)
		}
		for _, t := range inst.Types() {
			candidates = append(candidates, t.ID)
		}
	}

	seen := make(map[string]bool)
	var matches []string
	for _, c := range candidates {
		if strings.HasPrefix(c, word) && !seen[c] {
			seen[c] = true
			matches = append(matches, prefix+c)
		}
	}
	sort.Strings(matches)
	return matches
}

// splitLastWord splits line before the identifier being typed. Joins and
// brackets end a word, so `Board0.bo` completes `bo`.
func splitLastWord(line string) (string, string) {
	i := len(line)
	for i > 0 {
		c := line[i-1]
		if c == '_' || c == '/' || c == ':' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			i--
			continue
		}
		break
	}
	return line[:i], line[i:]
}

// needsMoreInput checks for unclosed braces, brackets, parentheses or block
// comments. Strings, backquoted names and line comments are skipped.
func needsMoreInput(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}

	depth := 0
	for i := 0; i < len(input); i++ {
		ch := input[i]
		switch {
		case ch == '"' || ch == '`':
			end := closingQuote(input, i+1, ch)
			if end < 0 {
				return true
			}
			i = end
		case ch == '-' && i+1 < len(input) && input[i+1] == '-',
			ch == '/' && i+1 < len(input) && input[i+1] == '/':
			for i < len(input) && input[i] != '\n' {
				i++
			}
		case ch == '/' && i+1 < len(input) && input[i+1] == '*':
			end := strings.Index(input[i+2:], "*/")
			if end < 0 {
				return true
			}
			i += end + 3
		case ch == '{' || ch == '[' || ch == '(':
			depth++
		case ch == '}' || ch == ']' || ch == ')':
			depth--
		}
	}
	return depth > 0
}

// closingQuote returns the index of the quote ending a literal that starts
// at i, or -1 when the literal is still open.
func closingQuote(input string, i int, quote byte) int {
	for ; i < len(input); i++ {
		switch input[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return -1
}
