package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/davecgh/go-spew/spew"

	"github.com/sambeau/forgeval/config"
	"github.com/sambeau/forgeval/pkg/forge/forge"
	"github.com/sambeau/forgeval/pkg/forge/instance"
	"github.com/sambeau/forgeval/pkg/forge/parser"
	"github.com/sambeau/forgeval/pkg/forge/repl"
)

// Version information, set at build time via -ldflags
var Version = "dev" // -X main.Version=$(git describe --tags --always)

// errFailed is returned when at least one expression failed. Its message
// has already been printed with the results.
var errFailed = errors.New("one or more expressions failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Getenv); err != nil {
		if err != errFailed {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// Args are the command-line flags of the evaluator.
type Args struct {
	Expr string `arg:"positional" help:"expression to evaluate"`

	Instance string `arg:"-i,--instance" placeholder:"PATH" help:"instance file (.json, .yaml, .yml, optionally .gz or .zst)"`
	DBDriver string `arg:"--db-driver" placeholder:"DRIVER" help:"read the instance from SQL: sqlite, postgres or mysql"`
	DBDSN    string `arg:"--db-dsn" placeholder:"DSN" help:"data source name for --db-driver"`
	DBPrefix string `arg:"--db-prefix" placeholder:"PREFIX" help:"table name prefix for --db-driver"`

	Eval  string `arg:"-e,--eval" placeholder:"EXPR" help:"evaluate an expression and print the result"`
	File  string `arg:"-f,--file" placeholder:"PATH" help:"evaluate each line of a query file"`
	Check bool   `arg:"--check" help:"parse without evaluating"`
	JSON  bool   `arg:"--json" help:"print results as JSON"`

	Rewrite  bool   `arg:"--rewrite" help:"rewrite two-variable comprehensions before evaluation"`
	Cache    *int   `arg:"--cache" placeholder:"N" help:"memoization capacity (0 disables)"`
	Lifetime string `arg:"--lifetime" placeholder:"instance|expression" help:"how long memoized results live"`

	Config string `arg:"--config" placeholder:"PATH" help:"config file (default: $FORGEVAL_CONFIG, ./forgeval.yaml, ~/.config/forgeval/forgeval.yaml)"`
	Watch  bool   `arg:"--watch" help:"reload the instance file when it changes (REPL)"`
	Debug  bool   `arg:"--debug" help:"dump the resolved configuration"`
}

func (Args) Version() string {
	return "forgeval version " + Version
}

func (Args) Description() string {
	return "forgeval - evaluate relational expressions against Forge instances"
}

// run is the main entry point, designed for testability
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) error {
	if len(args) > 0 && args[0] == "synth" {
		return runSynth(args[1:], stdout)
	}

	var a Args
	p, err := arg.NewParser(arg.Config{Program: "forgeval"}, &a)
	if err != nil {
		return err
	}
	err = p.Parse(args)
	switch {
	case err == arg.ErrHelp:
		p.WriteHelp(stdout)
		fmt.Fprintln(stdout, "\nCommands:\n  synth    synthesize an expression from example atoms (forgeval synth --help)")
		return nil
	case err == arg.ErrVersion:
		fmt.Fprintln(stdout, a.Version())
		return nil
	case err != nil:
		return err
	}

	if a.Eval != "" && a.Expr != "" {
		return errors.New("give an expression either with --eval or as an argument, not both")
	}
	expr := a.Eval
	if expr == "" {
		expr = a.Expr
	}

	if a.Check {
		return checkSyntax(expr, a.File, stdout)
	}

	cfg, err := loadConfig(a, getenv)
	if err != nil {
		return err
	}
	if a.Debug {
		spew.Fdump(stderr, cfg)
	}

	logger, closeLog, err := openLogger(cfg.Logging.Output, stdout, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	inst, err := loadInstance(ctx, cfg.Instance)
	if err != nil {
		return err
	}
	warnInvalid(inst, stderr)

	opts, err := cfg.SessionOptions(logger)
	if err != nil {
		return err
	}
	session, err := forge.New(inst, opts...)
	if err != nil {
		return err
	}

	switch {
	case expr != "":
		return printResults(stdout, a.JSON, session.Evaluate(expr))
	case a.File != "":
		return evalFile(session, a.File, a.JSON, stdout)
	}

	// Queries piped on stdin are evaluated like a file.
	if f, ok := stdin.(*os.File); !ok || !isTerminal(f) {
		return evalLines(session, stdin, a.JSON, stdout)
	}

	replOpts := repl.Options{
		Version:     Version,
		Prompt:      cfg.REPL.Prompt,
		HistoryFile: cfg.REPL.HistoryFile,
		JSON:        a.JSON,
		Reload: func() (instance.DataInstance, error) {
			inst, err := loadInstance(ctx, cfg.Instance)
			if err != nil {
				return nil, err
			}
			warnInvalid(inst, stderr)
			return inst, nil
		},
	}
	if cfg.REPL.Watch {
		if cfg.Instance.Path == "" {
			return errors.New("--watch needs an instance file")
		}
		replOpts.WatchPath = cfg.Instance.Path
	}
	return repl.Start(ctx, session, stdout, replOpts)
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(a Args, getenv func(string) string) (*config.Config, error) {
	cfg, err := config.Load(a.Config, getenv)
	if err != nil {
		return nil, err
	}

	if a.Instance != "" {
		cfg.Instance.Path = a.Instance
		cfg.Instance.Database = config.DatabaseConfig{}
	}
	if a.DBDriver != "" || a.DBDSN != "" {
		cfg.Instance.Path = ""
		cfg.Instance.Database = config.DatabaseConfig{Driver: a.DBDriver, DSN: a.DBDSN, Prefix: a.DBPrefix}
	}
	if a.Cache != nil {
		cfg.Evaluator.CacheCapacity = *a.Cache
	}
	if a.Lifetime != "" {
		cfg.Evaluator.Lifetime = a.Lifetime
	}
	if a.Rewrite {
		cfg.Evaluator.Rewrite = true
	}
	if a.Watch {
		cfg.REPL.Watch = true
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadInstance reads the instance from a file or a database.
func loadInstance(ctx context.Context, ic config.InstanceConfig) (*instance.Instance, error) {
	switch {
	case ic.Database.Enabled():
		return instance.OpenSQL(ctx, ic.Database.Driver, ic.Database.DSN, ic.Database.Prefix)
	case ic.Path != "" && ic.Format != "":
		data, err := os.ReadFile(ic.Path)
		if err != nil {
			return nil, err
		}
		// The name only selects the decoder.
		return instance.LoadBytes(data, ic.Path+"."+ic.Format)
	case ic.Path != "":
		return instance.Load(ic.Path)
	}
	return nil, errors.New("no instance: use --instance, --db-driver with --db-dsn, or instance.path in the config")
}

// warnInvalid reports structural problems without refusing the instance.
func warnInvalid(inst *instance.Instance, stderr io.Writer) {
	if err := inst.Validate(); err != nil {
		fmt.Fprintf(stderr, "[INSTANCE] warning: %v\n", err)
	}
}

// openLogger maps logging.output to a session logger.
func openLogger(output string, stdout, stderr io.Writer) (forge.Logger, func(), error) {
	switch output {
	case "stderr":
		return forge.WriterLogger(stderr), func() {}, nil
	case "stdout":
		return forge.WriterLogger(stdout), func() {}, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return forge.WriterLogger(f), func() { f.Close() }, nil
}

// printResults prints each result on its own line, as text or JSON, and
// returns errFailed if any of them is an error.
func printResults(out io.Writer, asJSON bool, results ...*forge.Result) error {
	failed := false
	for _, res := range results {
		if res.IsError() {
			failed = true
		}
		if asJSON {
			data, err := res.MarshalJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			continue
		}
		fmt.Fprintln(out, res.String())
	}
	if failed {
		return errFailed
	}
	return nil
}

func evalFile(session *forge.Session, path string, asJSON bool, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return evalLines(session, f, asJSON, out)
}

// evalLines evaluates every query line of r. Blank lines and lines starting
// with -- are skipped.
func evalLines(session *forge.Session, r io.Reader, asJSON bool, out io.Writer) error {
	queries, err := readQueries(r)
	if err != nil {
		return err
	}
	results := make([]*forge.Result, len(queries))
	for i, q := range queries {
		results[i] = session.Evaluate(q)
	}
	return printResults(out, asJSON, results...)
}

func readQueries(r io.Reader) ([]string, error) {
	var queries []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		queries = append(queries, line)
	}
	return queries, scanner.Err()
}

// checkSyntax parses the expression or every query of the file without
// evaluating.
func checkSyntax(expr, path string, out io.Writer) error {
	var queries []string
	switch {
	case expr != "":
		queries = []string{expr}
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if queries, err = readQueries(f); err != nil {
			return err
		}
	default:
		return errors.New("--check needs an expression or --file")
	}

	failed := 0
	for _, q := range queries {
		if _, err := parser.ParseExpression(q); err != nil {
			fmt.Fprintf(out, "%s: %v\n", q, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d expressions failed to parse", failed, len(queries))
	}
	fmt.Fprintf(out, "OK: %d expressions\n", len(queries))
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return true
	}
	return info.Mode()&os.ModeCharDevice != 0
}
