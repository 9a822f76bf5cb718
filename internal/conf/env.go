// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPrefix is prepended to every automatically bound key, e.g. BGG_CATALOG_TIMEOUT.
const envPrefix = "BGG"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "BGG_DEBUG", validateEnvBool},

		// Catalog
		{"catalog.baseurl", "BGG_CATALOG_BASEURL", validateEnvURL},
		{"catalog.timeout", "BGG_CATALOG_TIMEOUT", validateEnvDuration},
		{"catalog.ratelimitms", "BGG_CATALOG_RATELIMITMS", validateEnvNonNegativeInt},
		{"catalog.maxretries", "BGG_CATALOG_MAXRETRIES", validateEnvPositiveInt},

		// Images
		{"image.downloadtimeout", "BGG_IMAGE_DOWNLOADTIMEOUT", validateEnvDuration},
		{"image.maxsize", "BGG_IMAGE_MAXSIZE", validateEnvPositiveInt},

		// Database, DATABASE_URL is honoured for container deployments
		{"database.dsn", "BGG_DATABASE_DSN", nil},
		{"database.dsn", "DATABASE_URL", nil},

		// Sync
		{"sync.interval", "BGG_SYNC_INTERVAL", validateEnvDuration},
		{"sync.limit", "BGG_SYNC_LIMIT", validateEnvPositiveInt},

		// Telemetry
		{"sentry.enabled", "BGG_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	// Group bindings so several variables can feed one key, first listed wins
	envByKey := make(map[string][]string)
	var order []string
	for _, binding := range getEnvBindings() {
		if _, seen := envByKey[binding.ConfigKey]; !seen {
			order = append(order, binding.ConfigKey)
		}
		envByKey[binding.ConfigKey] = append(envByKey[binding.ConfigKey], binding.EnvVar)

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	for _, key := range order {
		args := append([]string{key}, envByKey[key]...)
		if err := viper.BindEnv(args...); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", strings.Join(envByKey[key], ","), err))
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("must be non-negative, got %d", n)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	return bindEnvVars()
}
