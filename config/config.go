package config

// Config represents the complete forgeval configuration
type Config struct {
	BaseDir   string          `yaml:"-"` // Directory containing config file, for resolving relative paths
	Path      string          `yaml:"-"` // Absolute path of the file that was loaded, empty for defaults
	Evaluator EvaluatorConfig `yaml:"evaluator"`
	Instance  InstanceConfig  `yaml:"instance"`
	REPL      REPLConfig      `yaml:"repl"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EvaluatorConfig holds evaluation settings
type EvaluatorConfig struct {
	CacheCapacity int    `yaml:"cache_capacity"` // Memoized AST nodes per evaluator (0 disables)
	Lifetime      string `yaml:"lifetime"`       // "instance" (default) or "expression"
	Rewrite       bool   `yaml:"rewrite"`        // Rewrite two-variable comprehensions before evaluation
}

// InstanceConfig says where the data instance comes from. Path and
// Database are mutually exclusive.
type InstanceConfig struct {
	Path     string         `yaml:"path"`   // Instance file (.json, .yaml, .yml, optionally .gz or .zst)
	Format   string         `yaml:"format"` // Overrides the extension: "json" or "yaml"
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds SQL instance source settings
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres or mysql
	DSN    string `yaml:"dsn"`    // Driver-specific data source name; a file path for sqlite
	Prefix string `yaml:"prefix"` // Table name prefix
}

// Enabled reports whether a SQL source is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Driver != ""
}

// REPLConfig holds interactive shell settings
type REPLConfig struct {
	HistoryFile string `yaml:"history_file"` // Default: $TMPDIR/.forgeval_history
	Watch       bool   `yaml:"watch"`        // Reload the instance file when it changes
	Prompt      string `yaml:"prompt"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Output string `yaml:"output"` // stderr, stdout, or file path
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Evaluator: EvaluatorConfig{
			CacheCapacity: 1000,
			Lifetime:      "instance",
		},
		REPL: REPLConfig{
			Prompt: "forge> ",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
		},
	}
}
