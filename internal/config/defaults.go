package config

import (
	"path/filepath"
	"time"
)

const (
	DefaultAddr         = ":8080"
	DefaultRepoDir      = "repos"
	DefaultDatabasePath = "forgebuild.db"
	DefaultBuildCommand = "ath"
	DefaultBuildTimeout = 15 * time.Minute
	DefaultCloneTimeout = 5 * time.Minute
	DefaultSubject      = "forgebuild.builds.completed"
)

// DefaultBuildArgs runs the build tool in release mode.
var DefaultBuildArgs = []string{"build", "--release"}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = "."
	}
	if cfg.Workspace.RepoDir == "" {
		cfg.Workspace.RepoDir = DefaultRepoDir
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.Workspace.Root, DefaultDatabasePath)
	}
	if cfg.Build.Command == "" {
		cfg.Build.Command = DefaultBuildCommand
		if len(cfg.Build.Args) == 0 {
			cfg.Build.Args = append([]string(nil), DefaultBuildArgs...)
		}
	}
	if cfg.Build.Timeout == 0 {
		cfg.Build.Timeout = DefaultBuildTimeout
	}
	if cfg.Build.CloneTimeout == 0 {
		cfg.Build.CloneTimeout = DefaultCloneTimeout
	}
	if cfg.Build.ShallowDepth < 0 {
		cfg.Build.ShallowDepth = 0
	}
	if cfg.Git.Auth != nil && cfg.Git.Auth.Type == "" {
		cfg.Git.Auth.Type = AuthTypeNone
	}
	if cfg.Events.NATSURL != "" && cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultSubject
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// WorkspaceDir is the directory holding every project workspace.
func (c *Config) WorkspaceDir() string {
	return filepath.Join(c.Workspace.Root, c.Workspace.RepoDir)
}
