package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	serialize := true
	example := Config{
		Server:    ServerConfig{Addr: DefaultAddr},
		Workspace: WorkspaceConfig{Root: ".", RepoDir: DefaultRepoDir},
		Database:  DatabaseConfig{Path: DefaultDatabasePath},
		Build: BuildConfig{
			Command:      DefaultBuildCommand,
			Args:         DefaultBuildArgs,
			Timeout:      DefaultBuildTimeout,
			CloneTimeout: DefaultCloneTimeout,
			Serialize:    &serialize,
			Signatures:   []string{"JS_Parse_Error", "Error", "TypeError", "Uncaught SyntaxError"},
		},
		Git:     GitConfig{Auth: &AuthConfig{Type: AuthTypeNone}},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
