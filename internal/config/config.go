// Package config loads wasmtriage settings from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"wasmtriage/internal/dedup"
	"wasmtriage/internal/logging"
)

// DefaultPath is read when no --config flag is given. Its absence is not
// an error.
const DefaultPath = "wasmtriage.yaml"

// ErrNotFound is returned by Load for an explicitly named file that does not exist.
var ErrNotFound = errors.New("config file not found")

// Config is the on-disk configuration.
type Config struct {
	Replay ReplayConfig `yaml:"replay"`
	Oracle OracleConfig `yaml:"oracle"`
	Dedup  DedupConfig  `yaml:"dedup"`
	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
}

type ReplayConfig struct {
	// Command is the harness argv; the function name and reduced
	// directory are appended.
	Command []string `yaml:"command"`
	Env     []string `yaml:"env,omitempty"`
	Dir     string   `yaml:"dir,omitempty"`
}

type OracleConfig struct {
	Timeout Duration `yaml:"timeout"`
}

type DedupConfig struct {
	MinLines int `yaml:"min_lines"`
	Workers  int `yaml:"workers"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	// Path of the SQLite catalog. Empty disables it.
	Path string `yaml:"path"`
}

// Duration is a time.Duration written as "30s" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Oracle: OracleConfig{Timeout: Duration(2 * time.Minute)},
		Dedup: DedupConfig{MinLines: dedup.MinLines, Workers: 4},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path means DefaultPath,
// which may be absent.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if explicit {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// EnvPrefix namespaces the environment overrides.
const EnvPrefix = "WASMTRIAGE"

// envOverrides are the WASMTRIAGE_* variables. A nil or empty field was
// not set and leaves the file value alone. REPLAY_COMMAND is a
// comma-separated argv.
type envOverrides struct {
	ReplayCommand []string       `split_words:"true"`
	OracleTimeout *time.Duration `split_words:"true"`
	DedupMinLines *int           `split_words:"true"`
	DedupWorkers  *int           `split_words:"true"`
	LogLevel      string         `split_words:"true"`
	LogFormat     string         `split_words:"true"`
	StorePath     string         `split_words:"true"`
}

// ApplyEnv overrides fields from WASMTRIAGE_* variables.
func (c *Config) ApplyEnv() error {
	var e envOverrides
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return fmt.Errorf("load environment overrides: %w", err)
	}
	if len(e.ReplayCommand) > 0 {
		c.Replay.Command = e.ReplayCommand
	}
	if e.OracleTimeout != nil {
		c.Oracle.Timeout = Duration(*e.OracleTimeout)
	}
	if e.DedupMinLines != nil {
		c.Dedup.MinLines = *e.DedupMinLines
	}
	if e.DedupWorkers != nil {
		c.Dedup.Workers = *e.DedupWorkers
	}
	if e.LogLevel != "" {
		c.Log.Level = e.LogLevel
	}
	if e.LogFormat != "" {
		c.Log.Format = e.LogFormat
	}
	if e.StorePath != "" {
		c.Store.Path = e.StorePath
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Dedup.MinLines < 1 {
		errs = append(errs, fmt.Errorf("dedup.min_lines must be positive, got %d", c.Dedup.MinLines))
	}
	if c.Dedup.Workers < 1 {
		errs = append(errs, fmt.Errorf("dedup.workers must be positive, got %d", c.Dedup.Workers))
	}
	if c.Oracle.Timeout < 0 {
		errs = append(errs, fmt.Errorf("oracle.timeout must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
