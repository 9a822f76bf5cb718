// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// minImageBudget keeps the image ladder meaningful; 80x80 at quality 30 needs a few KiB.
const minImageBudget = 64 * 1024

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateCatalogSettings(&settings.Catalog); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateImageSettings(&settings.Image); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateDatabaseSettings(&settings.Database); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSyncSettings(&settings.Sync); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry is enabled but sentry.dsn is empty")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateCatalogSettings(settings *CatalogSettings) error {
	var errs []string

	u, err := url.Parse(settings.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("catalog.baseurl must be an http(s) URL, got %q", settings.BaseURL))
	}
	if settings.Timeout <= 0 {
		errs = append(errs, "catalog.timeout must be greater than zero")
	}
	if settings.RateLimitMS < 0 {
		errs = append(errs, "catalog.ratelimitms must be non-negative")
	}
	if settings.MaxRetries < 1 {
		errs = append(errs, "catalog.maxretries must be at least 1")
	}
	if settings.SecondarySearchDelay < 0 {
		errs = append(errs, "catalog.secondarysearchdelay must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("catalog settings: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateImageSettings(settings *ImageSettings) error {
	var errs []string

	if settings.DownloadTimeout <= 0 {
		errs = append(errs, "image.downloadtimeout must be greater than zero")
	}
	if settings.MaxSize < minImageBudget {
		errs = append(errs, fmt.Sprintf("image.maxsize must be at least %d bytes", minImageBudget))
	}
	if settings.MaxDimension < 16 {
		errs = append(errs, "image.maxdimension must be at least 16")
	}

	if len(errs) > 0 {
		return fmt.Errorf("image settings: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabaseSettings(settings *DatabaseSettings) error {
	if strings.TrimSpace(settings.DSN) == "" {
		return fmt.Errorf("database settings: database.dsn is required")
	}
	if settings.MaxOpenConns < 1 {
		return fmt.Errorf("database settings: database.maxopenconns must be at least 1")
	}
	return nil
}

func validateSyncSettings(settings *SyncSettings) error {
	if settings.Interval < 0 {
		return fmt.Errorf("sync settings: sync.interval must be non-negative")
	}
	if settings.Limit < 1 {
		return fmt.Errorf("sync settings: sync.limit must be at least 1")
	}
	return nil
}
