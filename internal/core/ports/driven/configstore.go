package driven

// ConfigStore gives dotted-key access to the persisted settings,
// e.g. "portal.url" or "reconcile.compare_fields".
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	// GetString returns "" for missing or non-string values.
	GetString(key string) string

	// GetInt returns 0 for missing or non-numeric values.
	GetInt(key string) int

	// GetBool returns false for missing or non-bool values.
	GetBool(key string) bool

	// GetStringSlice returns nil for missing values.
	GetStringSlice(key string) []string

	// Set stores a value and persists it right away.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path returns the file backing the store.
	Path() string
}
