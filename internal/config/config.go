package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
)

// Config is the forgebuild configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Database  DatabaseConfig  `yaml:"database"`
	Build     BuildConfig     `yaml:"build"`
	Git       GitConfig       `yaml:"git"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Events    EventsConfig    `yaml:"events"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// WorkspaceConfig locates project workspaces. Workspaces live in Root/RepoDir.
type WorkspaceConfig struct {
	Root    string `yaml:"root"`
	RepoDir string `yaml:"repo_dir"`
}

// DatabaseConfig locates the SQLite database holding projects and build records.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// BuildConfig controls the external build tool and the classification rules.
type BuildConfig struct {
	Command      string        `yaml:"command"`
	Args         []string      `yaml:"args"`
	Timeout      time.Duration `yaml:"timeout"`
	CloneTimeout time.Duration `yaml:"clone_timeout"`
	ShallowDepth int           `yaml:"shallow_depth"`
	// Serialize builds of the same project. Disabling it reproduces the
	// historical lost-update race on buildCount.
	Serialize  *bool    `yaml:"serialize,omitempty"`
	Signatures []string `yaml:"signatures"`
}

// SerializeBuilds reports whether per-project build locking is enabled (default true).
func (b BuildConfig) SerializeBuilds() bool {
	return b.Serialize == nil || *b.Serialize
}

// GitConfig holds credentials used for every clone.
type GitConfig struct {
	Auth *AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Type     AuthType `yaml:"type"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
	KeyPath  string   `yaml:"key_path,omitempty"`
}

// AuthType enumerates supported git authentication methods.
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
	AuthTypeSSH   AuthType = "ssh"
)

// ScheduleConfig enables periodic rebuilds of every registered project.
type ScheduleConfig struct {
	RebuildInterval time.Duration `yaml:"rebuild_interval"`
}

// EventsConfig enables publication of build-completed events to NATS.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// IsEnabled defaults to true.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Load reads, expands and validates the configuration at path.
// A missing file yields the defaults so the service runs without any setup.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, errors.ConfigError("failed to read config file").WithCause(err).WithContext("path", path).Build()
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML after expanding ${VAR} references from the environment.
func Parse(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return errors.ConfigError("failed to unmarshal config").WithCause(err).Build()
	}
	return nil
}
