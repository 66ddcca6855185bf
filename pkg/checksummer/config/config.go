package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/checksummer/pkg/checksummer/journal"
	"github.com/jamesainslie/checksummer/pkg/checksummer/logging"
	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "CHECKSUMMER"

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level        string            `mapstructure:"level"`
	Path         string            `mapstructure:"path"`
	ConsoleLevel string            `mapstructure:"console_level"`
	Rotation     RotationConfig    `mapstructure:"rotation"`
	Components   map[string]string `mapstructure:"components"`
}

// Logging converts the file settings into a logging.Config.
func (c LoggingConfig) Logging() (logging.Config, error) {
	out := logging.Config{
		Level:        c.Level,
		Path:         c.Path,
		ConsoleLevel: c.ConsoleLevel,
		Components:   c.Components,
		Rotation: logging.RotationConfig{
			MaxAge:     c.Rotation.MaxAge,
			MaxBackups: c.Rotation.MaxBackups,
			Daily:      c.Rotation.Daily,
		},
	}
	if out.Path != "" {
		path, err := ExpandPath(out.Path)
		if err != nil {
			return out, err
		}
		out.Path = path
	}
	if c.Rotation.MaxSize != "" {
		size, err := types.ParseSize(c.Rotation.MaxSize)
		if err != nil {
			return out, fmt.Errorf("logging.rotation.max_size: %w", err)
		}
		out.Rotation.MaxSize = size
	}
	return out, nil
}

// OutputConfig configures report rendering.
type OutputConfig struct {
	Format   string `mapstructure:"format"`
	Limit    int    `mapstructure:"limit"`
	Template string `mapstructure:"template"`
}

// PagerConfig configures the external pager for interactive listings.
type PagerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Command string `mapstructure:"command"` // Empty means $PAGER, then DefaultPagerCommand
}

// JournalConfig configures the operations journal.
type JournalConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	BatchSize int           `mapstructure:"batch_size"`
	Exclude   []string      `mapstructure:"exclude"`
	Workers   int           `mapstructure:"workers"`
	Output    OutputConfig  `mapstructure:"output"`
	Pager     PagerConfig   `mapstructure:"pager"`
	Journal   JournalConfig `mapstructure:"journal"`
	Logging   LoggingConfig `mapstructure:"logging"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("workers", DefaultWorkers)

	v.SetDefault("output.format", DefaultFormat)
	v.SetDefault("output.limit", DefaultLimit)
	v.SetDefault("output.template", "")

	v.SetDefault("pager.enabled", true)
	v.SetDefault("pager.command", "")

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", DefaultJournalPath())
	v.SetDefault("journal.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means logging.DefaultLogPath
	v.SetDefault("logging.console_level", "")
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"store":  "info",
		"engine": "info",
	})
}

// Configure points v at the config file search path and environment.
// An explicit file overrides the search path.
func Configure(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "checksummer"))
		}

		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "checksummer"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return nil
}

// Read reads the config file into v. A missing file is not an error.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// Decode unmarshals v into a Config and expands ~ in paths.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	path, err := ExpandPath(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	cfg.Journal.Path = path

	return &cfg, nil
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/checksummer/config.yaml
//   - $HOME/.config/checksummer/config.yaml
//
// Environment variables are prefixed with CHECKSUMMER_ (e.g., CHECKSUMMER_BATCH_SIZE).
func Load() (*Config, error) {
	v := viper.New()
	if err := Configure(v, ""); err != nil {
		return nil, err
	}
	if err := Read(v); err != nil {
		return nil, err
	}
	return Decode(v)
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "checksummer"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "checksummer"), nil
}

// ConfigPath returns the path of the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# checksummer configuration

# Record writes per store transaction during collect, stat, checksum and verify
batch_size: %d

# Patterns (doublestar globs, relative to the root) never collected
exclude:
  - .git
  - .DS_Store
  - lost+found

# Concurrent directory readers while collecting
workers: %d

# Report rendering for one-shot commands
output:
  # plain, tsv, csv, markdown, json, jsonl, yaml, template, paths, null, pretty
  format: %s
  # Maximum rows per report (0 means all)
  limit: %d
  # Go template used by the template format (empty means the built-in one)
  template: ""

# Interactive listings are piped through a pager
pager:
  enabled: true
  # Empty means $PAGER, falling back to "%s"
  command: ""

# Every phase and prune is recorded in the journal
journal:
  enabled: true
  path: %s
  retention_days: %d

logging:
  # Log level: debug, info, warn, error
  level: %s
  # Log file path (empty means use default: $XDG_STATE_HOME/checksummer/checksummer.log)
  path: ""
  # Mirror log lines to stderr at this level (empty disables)
  console_level: ""
  rotation:
    max_size: %s
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    store: info
    engine: info
`, DefaultBatchSize, DefaultWorkers, DefaultFormat, DefaultLimit, DefaultPagerCommand,
		DefaultJournalPath(), DefaultRetentionDays, DefaultLogLevel, DefaultLogMaxSize)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/checksummer/ for the journal.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "checksummer")
}

// StateDir returns $XDG_STATE_HOME/checksummer/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "checksummer")
}

// DefaultJournalPath returns the default journal directory.
func DefaultJournalPath() string {
	return journal.DefaultPath()
}
