package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/saltyorg/easierlife/internal/config"
	"github.com/saltyorg/easierlife/internal/logging"
)

// GetSetting retrieves a setting value by key
func (db *db) GetSetting(key string) (string, error) {
	var value string
	err := db.queryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// GetSettingJSON retrieves a setting and unmarshals it from JSON
func (db *db) GetSettingJSON(key string, v any) error {
	value, err := db.GetSetting(key)
	if err != nil {
		return err
	}
	if value == "" {
		return nil
	}
	return json.Unmarshal([]byte(value), v)
}

// SetSetting stores a setting value
func (db *db) SetSetting(key, value string) error {
	_, err := db.exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// SetSettingJSON stores a setting as JSON
func (db *db) SetSettingJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}
	return db.SetSetting(key, string(data))
}

// GetAllSettings retrieves all settings
func (db *db) GetAllSettings() (map[string]string, error) {
	rows, err := db.query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}

	return settings, rows.Err()
}

// DeleteSetting removes a setting
func (db *db) DeleteSetting(key string) error {
	_, err := db.exec("DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// DefaultSettings are written on first start. Empty schedules disable the job.
var DefaultSettings = map[string]any{
	logging.KeyMaxSizeMB:              logging.DefaultMaxSizeMB,
	logging.KeyMaxBackups:             logging.DefaultMaxBackups,
	logging.KeyMaxAgeDays:             logging.DefaultMaxAgeDays,
	logging.KeyCompress:               logging.DefaultCompress,
	config.KeyReplaceAllMetadata:      config.DefaultPlugin().ReplaceAllMetadata,
	config.KeyReplaceImages:           config.DefaultPlugin().ReplaceImages,
	config.KeyForceMetadataRefresh:    config.DefaultPlugin().ForceMetadataRefresh,
	config.KeyCombineAllSeasons:       config.DefaultPlugin().CombineAllSeasons,
	config.KeyAggressiveReasons:       config.DefaultAggressiveReasons,
	config.KeyHookCooldown:            config.DefaultHookCooldownSeconds,
	config.KeyHookMaxConcurrent:       config.DefaultHookMaxConcurrent,
	config.KeyScheduleReplaceMetadata: "",
	config.KeyScheduleCombineSeasons:  "",
	config.KeyScheduleMaintenance:     "0 4 * * 0",
	config.KeyScheduleLibraries:       []string{},
	config.KeyJournalRetentionDays:    config.DefaultJournalRetention,
}

// InitializeDefaults sets default values for settings that don't exist
func (db *db) InitializeDefaults() error {
	for key, value := range DefaultSettings {
		existing, err := db.GetSetting(key)
		if err != nil {
			return err
		}
		if existing == "" {
			if err := db.SetSettingJSON(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}
