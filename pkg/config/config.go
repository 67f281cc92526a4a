package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultMaxChunks        = 1000
	DefaultMaxResponseChars = 100000
	DefaultRepetitionWindow = 1000
	DefaultTaskCap          = 10
	DefaultModelMaxTokens   = 8192
	DefaultBind             = "127.0.0.1:4806"
)

// Config represents the complete warden configuration
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Stream    StreamConfig    `yaml:"stream"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Model     ModelConfig     `yaml:"model"`
	API       APIConfig       `yaml:"api"`
	Bus       BusConfig       `yaml:"bus"`
}

// WorkspaceConfig locates the workspace the executor operates on
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// StorageConfig configures the SQLite persistence layer
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures the structured event logger
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// StreamConfig bounds model output
type StreamConfig struct {
	MaxChunks        int `yaml:"max_chunks"`
	MaxResponseChars int `yaml:"max_response_chars"`
	RepetitionWindow int `yaml:"repetition_window"`
}

// ExecutorConfig bounds task execution
type ExecutorConfig struct {
	TaskCap      int    `yaml:"task_cap"`
	TerminalName string `yaml:"terminal_name"`
}

// ScannerConfig tunes grammar scanning policy
type ScannerConfig struct {
	// EmptyBodyPlaceholder substitutes labeled placeholder content for
	// CREATE_FILE blocks whose body is empty after trimming.
	EmptyBodyPlaceholder *bool `yaml:"empty_body_placeholder"`
}

// ModelConfig configures the upstream provider
type ModelConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Name      string `yaml:"name"`
	MaxTokens int    `yaml:"max_tokens"`
}

// APIConfig configures the HTTP surface
type APIConfig struct {
	Bind string `yaml:"bind"`
}

// BusConfig configures the notification bus
type BusConfig struct {
	NATSURL string `yaml:"nats_url"`
}

// Default returns a config populated with defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".warden")
	placeholder := true
	return &Config{
		Storage: StorageConfig{Path: filepath.Join(base, "warden.db")},
		Logging: LoggingConfig{Dir: filepath.Join(base, "logs"), Level: "info"},
		Stream: StreamConfig{
			MaxChunks:        DefaultMaxChunks,
			MaxResponseChars: DefaultMaxResponseChars,
			RepetitionWindow: DefaultRepetitionWindow,
		},
		Executor: ExecutorConfig{TaskCap: DefaultTaskCap, TerminalName: "warden"},
		Scanner:  ScannerConfig{EmptyBodyPlaceholder: &placeholder},
		Model: ModelConfig{
			BaseURL:   "https://openrouter.ai/api/v1",
			APIKeyEnv: "OPENROUTER_API_KEY",
			MaxTokens: DefaultModelMaxTokens,
		},
		API: APIConfig{Bind: DefaultBind},
	}
}

// Load reads configuration from path, layering file values and then
// environment overrides on top of defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WARDEN_WORKSPACE_ROOT"); v != "" {
		cfg.Workspace.Root = v
	}
	if v := os.Getenv("WARDEN_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("WARDEN_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := os.Getenv("WARDEN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("WARDEN_BIND"); v != "" {
		cfg.API.Bind = v
	}
	if v := os.Getenv("WARDEN_NATS_URL"); v != "" {
		cfg.Bus.NATSURL = v
	}
	if v := os.Getenv("WARDEN_TASK_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Executor.TaskCap = n
		}
	}
	if v := os.Getenv("WARDEN_MODEL"); v != "" {
		cfg.Model.Name = v
	}
}

func (c *Config) normalize() {
	if c.Stream.MaxChunks <= 0 {
		c.Stream.MaxChunks = DefaultMaxChunks
	}
	if c.Stream.MaxResponseChars <= 0 {
		c.Stream.MaxResponseChars = DefaultMaxResponseChars
	}
	if c.Stream.RepetitionWindow <= 0 {
		c.Stream.RepetitionWindow = DefaultRepetitionWindow
	}
	if c.Executor.TaskCap <= 0 {
		c.Executor.TaskCap = DefaultTaskCap
	}
	if strings.TrimSpace(c.Executor.TerminalName) == "" {
		c.Executor.TerminalName = "warden"
	}
	if c.Model.MaxTokens <= 0 {
		c.Model.MaxTokens = DefaultModelMaxTokens
	}
	if c.Scanner.EmptyBodyPlaceholder == nil {
		placeholder := true
		c.Scanner.EmptyBodyPlaceholder = &placeholder
	}
	if strings.TrimSpace(c.API.Bind) == "" {
		c.API.Bind = DefaultBind
	}
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	return nil
}

// PlaceholderEnabled reports whether empty CREATE_FILE bodies are substituted.
func (c *Config) PlaceholderEnabled() bool {
	return c.Scanner.EmptyBodyPlaceholder == nil || *c.Scanner.EmptyBodyPlaceholder
}
