// Package config parses the optional rip.yaml project configuration: a
// yaml.v3-backed loader producing a ValidationError with
// file/line/field/suggestion context on failure.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidationError reports a configuration problem with enough context for
// a user to fix it without re-reading the whole file.
type ValidationError struct {
	File       string
	Line       int
	Field      string
	Reason     string
	Suggestion string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf(":%d", e.Line))
		}
		sb.WriteString(": ")
	}
	if e.Field != "" {
		sb.WriteString(e.Field)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Reason)
	if e.Suggestion != "" {
		sb.WriteString("\n  Hint: ")
		sb.WriteString(e.Suggestion)
	}
	return sb.String()
}

// CompactionConfig holds the defaults for the compaction scheduler.
type CompactionConfig struct {
	Stride   int    `yaml:"stride"`
	Strategy string `yaml:"strategy"`
}

// RunConfig holds default run-loop settings.
type RunConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// OpenResponsesConfig holds defaults for the OpenResponses-shaped provider
// transport.
type OpenResponsesConfig struct {
	StatelessHistory    bool `yaml:"stateless_history"`
	FollowupUserMessage bool `yaml:"followup_user_message"`
}

// TasksConfig holds defaults for background task execution.
type TasksConfig struct {
	AllowPTY bool `yaml:"allow_pty"`
}

// Config is the parsed rip.yaml.
type Config struct {
	DataDir       string              `yaml:"data_dir"`
	Workspace     string              `yaml:"workspace"`
	ServerAddr    string              `yaml:"server_addr"`
	Compaction    CompactionConfig    `yaml:"compaction"`
	Run           RunConfig           `yaml:"run"`
	OpenResponses OpenResponsesConfig `yaml:"open_responses"`
	Tasks         TasksConfig         `yaml:"tasks"`
}

// Default returns the configuration used when no rip.yaml is present.
func Default() Config {
	return Config{
		DataDir:    ".rip",
		Workspace:  ".",
		ServerAddr: "127.0.0.1:8080",
		Compaction: CompactionConfig{
			Stride:   compactionDefaultStride,
			Strategy: "recent_messages_v1",
		},
	}
}

// compactionDefaultStride mirrors compaction.DefaultStride. Config avoids
// importing compaction purely to keep this package's dependency surface to
// parsing and validation; keep the two constants in sync by hand.
const compactionDefaultStride = 10000

// Load reads and validates rip.yaml at path. A missing file is not an
// error: it returns Default().
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, parseYAMLError(path, err)
	}

	if err := validate(&cfg, path); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func parseYAMLError(path string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "line") {
		return &ValidationError{
			File:       path,
			Reason:     fmt.Sprintf("YAML syntax error: %s", msg),
			Suggestion: "Check for incorrect indentation, missing colons, or invalid characters",
		}
	}
	return &ValidationError{
		File:       path,
		Reason:     fmt.Sprintf("failed to parse YAML: %s", msg),
		Suggestion: "Ensure the file is valid YAML",
	}
}

func validate(cfg *Config, path string) error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return &ValidationError{
			File:       path,
			Field:      "data_dir",
			Reason:     "must not be empty",
			Suggestion: "Set data_dir to a path like '.rip'",
		}
	}
	if cfg.Compaction.Stride < 0 {
		return &ValidationError{
			File:       path,
			Field:      "compaction.stride",
			Reason:     fmt.Sprintf("must be non-negative, got %d", cfg.Compaction.Stride),
			Suggestion: "Remove the field to use the default of 10,000, or set a positive integer",
		}
	}
	if cfg.Compaction.Stride == 0 {
		cfg.Compaction.Stride = compactionDefaultStride
	}
	if cfg.Compaction.Strategy == "" {
		cfg.Compaction.Strategy = "recent_messages_v1"
	}
	return nil
}

// ResolveDataDir returns cfg.DataDir relative to the directory the config
// file lives in, so a rip.yaml committed to a repo resolves the same way
// regardless of the caller's working directory.
func ResolveDataDir(cfg Config, configPath string) string {
	if filepath.IsAbs(cfg.DataDir) {
		return cfg.DataDir
	}
	return filepath.Join(filepath.Dir(configPath), cfg.DataDir)
}

// ResolveWorkspaceRoot returns cfg.Workspace as an absolute path, resolved
// relative to the directory the config file lives in, mirroring
// ResolveDataDir.
func ResolveWorkspaceRoot(cfg Config, configPath string) (string, error) {
	ws := cfg.Workspace
	if ws == "" {
		ws = "."
	}
	if !filepath.IsAbs(ws) {
		ws = filepath.Join(filepath.Dir(configPath), ws)
	}
	return filepath.Abs(ws)
}

// These constants name the environment variables that take precedence over
// rip.yaml, applied after loading and validation so a variable can never be
// rejected as an unrecognized field and never needs its own YAML schema
// entry.
const (
	envDataDir             = "RIP_DATA_DIR"
	envWorkspaceRoot       = "RIP_WORKSPACE_ROOT"
	envServerAddr          = "RIP_SERVER_ADDR"
	envStatelessHistory    = "RIP_OPENRESPONSES_STATELESS_HISTORY"
	envFollowupUserMessage = "RIP_OPENRESPONSES_FOLLOWUP_USER_MESSAGE"
	envTasksAllowPTY       = "RIP_TASKS_ALLOW_PTY"
)

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(envWorkspaceRoot); v != "" {
		cfg.Workspace = v
	}
	if v := os.Getenv(envServerAddr); v != "" {
		cfg.ServerAddr = v
	}
	if v, ok := boolEnv(envStatelessHistory); ok {
		cfg.OpenResponses.StatelessHistory = v
	}
	if v, ok := boolEnv(envFollowupUserMessage); ok {
		cfg.OpenResponses.FollowupUserMessage = v
	}
	if v, ok := boolEnv(envTasksAllowPTY); ok {
		cfg.Tasks.AllowPTY = v
	}
}

func boolEnv(key string) (value bool, ok bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return b, true
}
