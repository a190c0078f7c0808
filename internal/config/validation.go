package config

import (
	"errors"
	"fmt"
	"strings"

	ferrors "git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
)

// Validate checks the loaded configuration for values the service cannot run with.
func Validate(cfg *Config) error {
	var errs []error
	if cfg.Build.Timeout < 0 {
		errs = append(errs, fmt.Errorf("build.timeout must not be negative"))
	}
	if cfg.Build.CloneTimeout < 0 {
		errs = append(errs, fmt.Errorf("build.clone_timeout must not be negative"))
	}
	if cfg.Schedule.RebuildInterval < 0 {
		errs = append(errs, fmt.Errorf("schedule.rebuild_interval must not be negative"))
	}
	for i, s := range cfg.Build.Signatures {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Errorf("build.signatures[%d] must not be empty", i))
		}
	}
	if a := cfg.Git.Auth; a != nil {
		switch a.Type {
		case AuthTypeNone, AuthTypeSSH:
		case AuthTypeToken:
			if a.Token == "" {
				errs = append(errs, fmt.Errorf("git.auth.token is required for token authentication"))
			}
		case AuthTypeBasic:
			if a.Username == "" || a.Password == "" {
				errs = append(errs, fmt.Errorf("git.auth username and password are required for basic authentication"))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported git.auth.type %q", a.Type))
		}
	}
	if _, err := formatNames.NormalizeWithValidation(cfg.Logging.Format); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return ferrors.ConfigError("invalid configuration").WithCause(errors.Join(errs...)).Build()
	}
	return nil
}
