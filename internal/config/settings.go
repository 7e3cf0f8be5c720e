package config

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SettingsGetter is an interface for retrieving settings from storage
type SettingsGetter interface {
	GetSetting(key string) (string, error)
}

// SettingsStore reads and writes settings
type SettingsStore interface {
	SettingsGetter
	SetSettingJSON(key string, v any) error
}

// Loader provides typed access to settings with default values.
// Every call reads storage, so changes apply without a restart.
type Loader struct {
	db SettingsGetter
}

// NewLoader creates a new settings loader
func NewLoader(db SettingsGetter) *Loader {
	return &Loader{db: db}
}

func (l *Loader) raw(key string) string {
	if l == nil || l.db == nil {
		return ""
	}
	val, _ := l.db.GetSetting(key)
	return val
}

// Int retrieves an integer setting, returning defaultVal if not found or invalid
func (l *Loader) Int(key string, defaultVal int) int {
	if val := l.raw(key); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			return v
		}
	}
	return defaultVal
}

// Bool retrieves a boolean setting, returning defaultVal if not found
// Recognizes "true" as true, anything else (including "false") as false
func (l *Loader) Bool(key string, defaultVal bool) bool {
	if val := l.raw(key); val != "" {
		return val == "true"
	}
	return defaultVal
}

// String retrieves a string setting, returning defaultVal if not found or empty.
// JSON-encoded strings are unquoted.
func (l *Loader) String(key, defaultVal string) string {
	val := l.raw(key)
	if strings.HasPrefix(val, `"`) {
		var s string
		if err := json.Unmarshal([]byte(val), &s); err == nil {
			val = s
		}
	}
	if val != "" {
		return val
	}
	return defaultVal
}

// StringSlice retrieves a JSON array setting, returning defaultVal if not found or invalid
func (l *Loader) StringSlice(key string, defaultVal []string) []string {
	if val := l.raw(key); val != "" {
		var out []string
		if err := json.Unmarshal([]byte(val), &out); err == nil {
			return out
		}
	}
	return defaultVal
}

// DurationSeconds retrieves a duration setting stored as seconds
func (l *Loader) DurationSeconds(key string, defaultSeconds int) time.Duration {
	seconds := l.Int(key, defaultSeconds)
	return time.Duration(seconds) * time.Second
}

// DurationDays retrieves a duration setting stored as days
func (l *Loader) DurationDays(key string, defaultDays int) time.Duration {
	days := l.Int(key, defaultDays)
	return time.Duration(days) * 24 * time.Hour
}
