package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/sambeau/forgeval/pkg/forge/forge"
	"github.com/sambeau/forgeval/pkg/forge/instance"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forgeval.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func noEnv(string) string { return "" }

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Evaluator.CacheCapacity != 1000 {
		t.Errorf("expected default cache capacity 1000, got %d", cfg.Evaluator.CacheCapacity)
	}
	if cfg.Evaluator.Lifetime != "instance" {
		t.Errorf("expected default lifetime 'instance', got %q", cfg.Evaluator.Lifetime)
	}
	if cfg.Evaluator.Rewrite {
		t.Error("the rewriter should be off by default")
	}
	if cfg.REPL.Prompt != "forge> " {
		t.Errorf("unexpected prompt %q", cfg.REPL.Prompt)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestInterpolateEnv(t *testing.T) {
	getenv := func(key string) string {
		switch key {
		case "TEST_DB":
			return "forge"
		case "TEST_PORT":
			return "5432"
		default:
			return ""
		}
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple substitution", "dsn: ${TEST_DB}", "dsn: forge"},
		{"with default (env set)", "dsn: ${TEST_DB:-other}", "dsn: forge"},
		{"with default (env not set)", "dsn: ${UNSET_VAR:-other}", "dsn: other"},
		{"unset without default", "dsn: ${UNSET_VAR}", "dsn: "},
		{"multiple substitutions", "dsn: host=db port=${TEST_PORT} dbname=${TEST_DB}", "dsn: host=db port=5432 dbname=forge"},
		{"no substitution needed", "path: ttt.json", "path: ttt.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := string(interpolateEnv([]byte(tt.input), getenv))
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
evaluator:
  cache_capacity: 50
  lifetime: expression
  rewrite: true

instance:
  path: data/ttt.json

repl:
  history_file: .history
  watch: true

logging:
  level: debug
  output: logs/forge.log
`)
	baseDir := filepath.Dir(path)

	cfg, err := Load(path, noEnv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := &Config{
		BaseDir: baseDir,
		Path:    path,
		Evaluator: EvaluatorConfig{
			CacheCapacity: 50,
			Lifetime:      "expression",
			Rewrite:       true,
		},
		Instance: InstanceConfig{Path: filepath.Join(baseDir, "data", "ttt.json")},
		REPL: REPLConfig{
			HistoryFile: filepath.Join(baseDir, ".history"),
			Watch:       true,
			Prompt:      "forge> ",
		},
		Logging: LoggingConfig{
			Level:  "debug",
			Output: filepath.Join(baseDir, "logs", "forge.log"),
		},
	}
	if diff := pretty.Compare(cfg, want); diff != "" {
		t.Errorf("config (-got +want):\n%s", diff)
	}
}

func TestLoadWithEnvInterpolation(t *testing.T) {
	path := writeConfig(t, `
instance:
  database:
    driver: postgres
    dsn: "host=${PGHOST:-localhost} dbname=${PGDATABASE}"
    prefix: ${PREFIX:-forge_}
`)
	getenv := func(key string) string {
		if key == "PGDATABASE" {
			return "models"
		}
		return ""
	}

	cfg, err := Load(path, getenv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	db := cfg.Instance.Database
	if db.DSN != "host=localhost dbname=models" {
		t.Errorf("unexpected dsn %q", db.DSN)
	}
	if db.Prefix != "forge_" {
		t.Errorf("unexpected prefix %q", db.Prefix)
	}
	if !db.Enabled() {
		t.Error("database should be enabled")
	}
}

func TestLoadSQLitePath(t *testing.T) {
	tests := []struct {
		dsn      string
		relative bool
	}{
		{"instances.db", true},
		{":memory:", false},
		{"file:test.db?mode=ro", false},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			path := writeConfig(t, "instance:\n  database:\n    driver: sqlite\n    dsn: \""+tt.dsn+"\"\n")
			cfg, err := Load(path, noEnv)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			want := tt.dsn
			if tt.relative {
				want = filepath.Join(filepath.Dir(path), tt.dsn)
			}
			if cfg.Instance.Database.DSN != want {
				t.Errorf("expected %q, got %q", want, cfg.Instance.Database.DSN)
			}
		})
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr []string
	}{
		{
			name:   "valid",
			modify: func(c *Config) {},
		},
		{
			name:    "negative cache",
			modify:  func(c *Config) { c.Evaluator.CacheCapacity = -1 },
			wantErr: []string{"evaluator.cache_capacity: -1"},
		},
		{
			name:    "bad lifetime",
			modify:  func(c *Config) { c.Evaluator.Lifetime = "forever" },
			wantErr: []string{`evaluator.lifetime: unknown cache lifetime "forever"`},
		},
		{
			name:    "bad format",
			modify:  func(c *Config) { c.Instance.Format = "xml" },
			wantErr: []string{`instance.format: "xml"`},
		},
		{
			name: "path and database",
			modify: func(c *Config) {
				c.Instance.Path = "ttt.json"
				c.Instance.Database = DatabaseConfig{Driver: "sqlite", DSN: "x.db"}
			},
			wantErr: []string{"mutually exclusive"},
		},
		{
			name:    "unknown driver without dsn",
			modify:  func(c *Config) { c.Instance.Database.Driver = "oracle" },
			wantErr: []string{`driver: "oracle"`, "dsn is required"},
		},
		{
			name:    "dsn without driver",
			modify:  func(c *Config) { c.Instance.Database.DSN = "x.db" },
			wantErr: []string{"driver is required"},
		},
		{
			name: "bad logging",
			modify: func(c *Config) {
				c.Logging.Level = "loud"
				c.Logging.Output = ""
			},
			wantErr: []string{"logging.level", "logging.output is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)
			err := Validate(cfg)

			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			msg := err.Error()
			if !strings.HasPrefix(msg, "configuration errors:\n  - ") {
				t.Errorf("unexpected format: %q", msg)
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(msg, want) {
					t.Errorf("expected %q in %q", want, msg)
				}
			}
		})
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "evaluator:\n  lifetime: sometimes\n")
	if _, err := Load(path, noEnv); err == nil {
		t.Error("expected a validation error")
	}

	path = writeConfig(t, "evaluator: [not, a, map]\n")
	if _, err := Load(path, noEnv); err == nil || !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := Load("/nonexistent/forgeval.yaml", noEnv); err == nil {
		t.Error("expected error for a missing explicit config")
	}

	env := func(key string) string {
		if key == EnvConfig {
			return "/nonexistent/env.yaml"
		}
		return ""
	}
	if _, err := Load("", env); err == nil || !strings.Contains(err.Error(), EnvConfig) {
		t.Errorf("expected %s error, got %v", EnvConfig, err)
	}

	path := writeConfig(t, "evaluator:\n  cache_capacity: 7\n")
	env = func(key string) string {
		if key == EnvConfig {
			return path
		}
		return ""
	}
	cfg, err := Load("", env)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Evaluator.CacheCapacity != 7 {
		t.Errorf("expected the env config to be used, got %+v", cfg.Evaluator)
	}

	cfg, err = Load("", noEnv)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path != "" || cfg.Evaluator.CacheCapacity != 1000 {
		t.Errorf("expected defaults when no file exists, got %+v", cfg)
	}
}

func TestHomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "forgeval")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "forgeval.yaml"), []byte("instance:\n  path: ttt.json\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("", noEnv)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Instance.Path != filepath.Join(dir, "ttt.json") {
		t.Errorf("unexpected instance path %q", cfg.Instance.Path)
	}
}

func TestSessionOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Evaluator.Lifetime = "expression"
	cfg.Evaluator.Rewrite = true

	opts, err := cfg.SessionOptions(forge.NullLogger())
	if err != nil {
		t.Fatal(err)
	}
	s, err := forge.New(instance.NewBuilder().AddType("Node", nil, "N0").Build(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	if s.Lifetime() != forge.PerExpression || !s.Rewriting() {
		t.Errorf("options not applied: lifetime %v, rewriting %v", s.Lifetime(), s.Rewriting())
	}

	cfg.Logging.Level = "loud"
	if _, err := cfg.SessionOptions(forge.NullLogger()); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
