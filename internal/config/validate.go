package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate checks the structural validity of a Config. All problems are
// reported at once via errors.Join.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Oracle.APIKey == "" {
		errs = append(errs, errors.New("config: oracle.api_key is required"))
	}
	if cfg.Database.Path == "" {
		errs = append(errs, errors.New("config: database.path is required"))
	}
	if cfg.Agent.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("config: agent.max_steps must not be negative, got %d", cfg.Agent.MaxSteps))
	}
	if cfg.Agent.ToolErrorRetryQuota < 0 {
		errs = append(errs, fmt.Errorf("config: agent.tool_error_retry_quota must not be negative, got %d", cfg.Agent.ToolErrorRetryQuota))
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: unknown logging.level %q", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("config: unknown logging.format %q", cfg.Logging.Format))
	}

	if cfg.Reports.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Reports.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("config: invalid reports.schedule: %w", err))
		}
	}

	return errors.Join(errs...)
}
