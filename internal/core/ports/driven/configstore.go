package driven

import "time"

// ConfigStore holds vault settings as dotted keys such as "chat.top_k".
// Typed getters return the zero value when a key is missing or cannot be
// converted; callers that need a default check Get first.
type ConfigStore interface {
	// Get returns the raw value under key and whether it is set.
	Get(key string) (any, bool)

	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetFloat(key string) float64

	// GetDuration parses a Go duration string such as "90s".
	GetDuration(key string) time.Duration

	// Set stores value under key and persists it immediately.
	Set(key string, value any) error

	// Save writes the current values to storage.
	Save() error

	// Load reads values from storage, replacing what is held in memory.
	Load() error

	// Path returns where the values are persisted.
	Path() string
}
