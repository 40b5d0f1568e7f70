package driving

import "github.com/custodia-labs/dkansync/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetPortal configures the portal connection.
	SetPortal(url, username, password string) error

	// SetValue updates a single setting by its config key.
	SetValue(key, value string) error

	// Keys lists the config keys SetValue accepts.
	Keys() []string

	// Validate checks that the portal is configured.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
