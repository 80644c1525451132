package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sambeau/forgeval/pkg/forge/forge"
)

// EnvConfig names the environment variable that points at a config file.
const EnvConfig = "FORGEVAL_CONFIG"

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations and falls back to
// Defaults when none exists.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Defaults(), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve config path")
	}
	baseDir := filepath.Dir(absPath)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}

	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	cfg.BaseDir = baseDir
	cfg.Path = absPath

	cfg.Instance.Path = resolvePath(baseDir, cfg.Instance.Path)
	cfg.REPL.HistoryFile = resolvePath(baseDir, cfg.REPL.HistoryFile)
	if cfg.Logging.Output != "stderr" && cfg.Logging.Output != "stdout" {
		cfg.Logging.Output = resolvePath(baseDir, cfg.Logging.Output)
	}
	if cfg.Instance.Database.Driver == "sqlite" && isSQLiteFile(cfg.Instance.Database.DSN) {
		cfg.Instance.Database.DSN = resolvePath(baseDir, cfg.Instance.Database.DSN)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// isSQLiteFile reports whether a sqlite DSN is a plain file path rather than
// a URI or the in-memory database.
func isSQLiteFile(dsn string) bool {
	return dsn != "" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > FORGEVAL_CONFIG env > ./forgeval.yaml > ~/.config/forgeval/forgeval.yaml
// An empty result with no error means no file was found.
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if envPath := getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", errors.Errorf("%s file not found: %s", EnvConfig, envPath)
		}
		return envPath, nil
	}

	if _, err := os.Stat("forgeval.yaml"); err == nil {
		return "forgeval.yaml", nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "forgeval", "forgeval.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", nil
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value := getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

var (
	validFormats = map[string]bool{"": true, "json": true, "yaml": true, "yml": true}
	validDrivers = map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
)

// Validate checks the configuration and reports every problem at once.
// Call it again after applying command-line overrides.
func Validate(cfg *Config) error {
	var result *multierror.Error

	if cfg.Evaluator.CacheCapacity < 0 {
		result = multierror.Append(result, errors.Errorf("evaluator.cache_capacity: %d (must be 0 or more)", cfg.Evaluator.CacheCapacity))
	}
	if _, err := forge.ParseLifetime(cfg.Evaluator.Lifetime); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "evaluator.lifetime"))
	}

	inst := cfg.Instance
	if !validFormats[strings.ToLower(inst.Format)] {
		result = multierror.Append(result, errors.Errorf("instance.format: %q (must be json or yaml)", inst.Format))
	}
	if inst.Database.Enabled() {
		if !validDrivers[inst.Database.Driver] {
			result = multierror.Append(result, errors.Errorf("instance.database.driver: %q (must be sqlite, postgres or mysql)", inst.Database.Driver))
		}
		if inst.Database.DSN == "" {
			result = multierror.Append(result, errors.New("instance.database.dsn is required when a driver is set"))
		}
		if inst.Path != "" {
			result = multierror.Append(result, errors.New("instance.path and instance.database are mutually exclusive"))
		}
	} else if inst.Database.DSN != "" {
		result = multierror.Append(result, errors.New("instance.database.driver is required when a dsn is set"))
	}

	if _, err := forge.ParseLevel(cfg.Logging.Level); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "logging.level"))
	}
	if cfg.Logging.Output == "" {
		result = multierror.Append(result, errors.New("logging.output is required"))
	}

	if result != nil {
		result.ErrorFormat = formatErrors
	}
	return result.ErrorOrNil()
}

func formatErrors(errs []error) string {
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = err.Error()
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(lines, "\n  - "))
}

// SessionOptions turns the evaluator and logging sections into session
// options. The caller supplies the logger built from Logging.Output.
func (cfg *Config) SessionOptions(logger forge.Logger) ([]forge.Option, error) {
	lifetime, err := forge.ParseLifetime(cfg.Evaluator.Lifetime)
	if err != nil {
		return nil, err
	}
	level, err := forge.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return []forge.Option{
		forge.WithCacheCapacity(cfg.Evaluator.CacheCapacity),
		forge.WithLifetime(lifetime),
		forge.WithRewriter(cfg.Evaluator.Rewrite),
		forge.WithLogger(logger),
		forge.WithLogLevel(level),
	}, nil
}
