package config

import (
	"context"
	"time"
)

// Config is the complete guidebook configuration.
type Config struct {
	Run        RunConfig        `koanf:"run"`
	Optimize   OptimizeConfig   `koanf:"optimize"`
	Exec       ExecConfig       `koanf:"exec"`
	Store      StoreConfig      `koanf:"store"`
	CLI        CLIConfig        `koanf:"cli"`
	Log        LogConfig        `koanf:"log"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
}

// RunConfig controls how the guide resolves choices and runs tasks.
type RunConfig struct {
	Mode        string `koanf:"mode"        validate:"oneof=auto step dry-run" env:"GUIDEBOOK_RUN_MODE"`
	Interactive bool   `koanf:"interactive"                                    env:"GUIDEBOOK_RUN_INTERACTIVE"`
	Profile     string `koanf:"profile"     validate:"required"                env:"GUIDEBOOK_RUN_PROFILE"`
	Concurrency int    `koanf:"concurrency" validate:"min=1"                   env:"GUIDEBOOK_RUN_CONCURRENCY"`
}

// OptimizeConfig selects the optimizer passes.
type OptimizeConfig struct {
	Enabled             bool `koanf:"enabled"              env:"GUIDEBOOK_OPTIMIZE_ENABLED"`
	Aprioris            bool `koanf:"aprioris"             env:"GUIDEBOOK_OPTIMIZE_APRIORIS"`
	Validate            bool `koanf:"validate"             env:"GUIDEBOOK_OPTIMIZE_VALIDATE"`
	ThrowErrors         bool `koanf:"throw_errors"         env:"GUIDEBOOK_OPTIMIZE_THROW_ERRORS"`
	ValidateConcurrency int  `koanf:"validate_concurrency" env:"GUIDEBOOK_OPTIMIZE_VALIDATE_CONCURRENCY" validate:"min=1"`
}

// ExecConfig configures the executor dispatch chain.
type ExecConfig struct {
	Shell      string            `koanf:"shell"       validate:"required" env:"GUIDEBOOK_EXEC_SHELL"`
	Python     string            `koanf:"python"      validate:"required" env:"GUIDEBOOK_EXEC_PYTHON"`
	Timeout    time.Duration     `koanf:"timeout"                         env:"GUIDEBOOK_EXEC_TIMEOUT"`
	MaxCapture int               `koanf:"max_capture" validate:"min=1"    env:"GUIDEBOOK_EXEC_MAX_CAPTURE"`
	DotEnv     string            `koanf:"dotenv"                          env:"GUIDEBOOK_EXEC_DOTENV"`
	Quiet      bool              `koanf:"quiet"                           env:"GUIDEBOOK_EXEC_QUIET"`
	Shortcuts  map[string]string `koanf:"shortcuts"`
}

// StoreConfig locates persisted profiles and the status memo.
type StoreConfig struct {
	ProfilesPath        string `koanf:"profiles_path"         env:"GUIDEBOOK_STORE_PROFILES_PATH,MWPROFILES_PATH"`
	CachePath           string `koanf:"cache_path"            env:"GUIDEBOOK_STORE_CACHE_PATH"`
	Locking             bool   `koanf:"locking"               env:"GUIDEBOOK_STORE_LOCKING"`
	ValidationCacheSize int    `koanf:"validation_cache_size" env:"GUIDEBOOK_STORE_VALIDATION_CACHE_SIZE" validate:"min=1"`
}

// CLIConfig holds presentation settings.
type CLIConfig struct {
	Narrow  bool `koanf:"narrow"   env:"GUIDEBOOK_CLI_NARROW"`
	NoColor bool `koanf:"no_color" env:"NO_COLOR"`
	Verbose bool `koanf:"verbose"  env:"GUIDEBOOK_CLI_VERBOSE"`
}

type LogConfig struct {
	Level  string `koanf:"level"  validate:"oneof=debug info warn error disabled" env:"GUIDEBOOK_LOG_LEVEL"`
	JSON   bool   `koanf:"json"                                                   env:"GUIDEBOOK_LOG_JSON"`
	Source bool   `koanf:"source"                                                 env:"GUIDEBOOK_LOG_SOURCE"`
}

// MonitoringConfig enables the dispatch metrics textfile.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"GUIDEBOOK_MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"GUIDEBOOK_MONITORING_PATH"`
}

// Service loads and validates configuration.
type Service interface {
	// Load applies defaults, then sources in order, then the environment.
	// Later sources win over earlier ones.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(config *Config) error
	// GetSource reports which source provided a key.
	GetSource(key string) SourceType
}

// Source provides a nested map of configuration values.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
	Close() error
}

type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata records where each key came from.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Mode:        "auto",
			Interactive: true,
			Profile:     "default",
			Concurrency: 1,
		},
		Optimize: OptimizeConfig{
			Enabled:             true,
			Aprioris:            true,
			Validate:            true,
			ValidateConcurrency: 4,
		},
		Exec: ExecConfig{
			Shell:      "sh",
			Python:     "python3",
			MaxCapture: 1 << 20,
			Quiet:      true,
			Shortcuts:  map[string]string{},
		},
		Store: StoreConfig{
			Locking:             true,
			ValidationCacheSize: 512,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
