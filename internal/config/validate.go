package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// Administrative API key
	if len(c.Auth.APIKey) < 16 {
		errs = append(errs, "AUTH_API_KEY must be at least 16 characters")
	}

	// Launch token secret
	if len(c.Launch.Secret) < 32 {
		errs = append(errs, "LAUNCH_SECRET must be at least 32 characters")
	}
	if c.Launch.MaxLifetime <= 0 {
		errs = append(errs, "LAUNCH_MAX_LIFETIME must be positive")
	} else if c.Launch.MaxLifetime > time.Minute {
		errs = append(errs, fmt.Sprintf("LAUNCH_MAX_LIFETIME must be at most 1m, got %s (launch tokens are one-shot assertions, not sessions)", c.Launch.MaxLifetime))
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Tool base URL: warn only, metadata degrades to empty URL fields
	if c.Tool.BaseURL == "" {
		slog.Warn("TOOL_BASE_URL is empty, /metadata will serve empty tool URLs")
	} else if u, err := url.Parse(c.Tool.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("TOOL_BASE_URL must be an absolute URL, got %q", c.Tool.BaseURL))
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
