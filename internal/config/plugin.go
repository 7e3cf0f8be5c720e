package config

import (
	"fmt"
	"time"

	"github.com/saltyorg/easierlife/internal/library"
)

// Setting keys
const (
	KeyReplaceAllMetadata   = "plugin.replace_all_metadata"
	KeyReplaceImages        = "plugin.replace_images"
	KeyForceMetadataRefresh = "plugin.force_metadata_refresh"
	KeyCombineAllSeasons    = "plugin.combine_all_seasons"

	KeyAggressiveReasons = "hook.aggressive_reasons"
	KeyHookCooldown      = "hook.cooldown_seconds"
	KeyHookMaxConcurrent = "hook.max_concurrent"

	KeyScheduleReplaceMetadata = "schedule.replace_metadata"
	KeyScheduleCombineSeasons  = "schedule.combine_seasons"
	KeyScheduleMaintenance     = "schedule.maintenance"
	KeyScheduleLibraries       = "schedule.libraries"

	KeyJournalRetentionDays = "journal.retention_days"

	KeyAPIKeyHash = "auth.api_key_hash"
)

// Hook defaults
const (
	DefaultHookCooldownSeconds = 600
	DefaultHookMaxConcurrent   = 4
	DefaultJournalRetention    = 90
)

// DefaultAggressiveReasons are the update reasons that trigger a replacement when forced refresh is on
var DefaultAggressiveReasons = []string{
	string(library.ReasonMetadataDownload),
	string(library.ReasonMetadataEdit),
	string(library.ReasonImageUpdate),
	string(library.ReasonNone),
	string(library.ReasonUserDataSaved),
	string(library.ReasonChapterMetadataDownload),
}

// Plugin holds the four behavior flags
type Plugin struct {
	ReplaceAllMetadata   bool `json:"ReplaceAllMetadata"`
	ReplaceImages        bool `json:"ReplaceImages"`
	ForceMetadataRefresh bool `json:"ForceMetadataRefresh"`
	CombineAllSeasons    bool `json:"CombineAllSeasons"`
}

// DefaultPlugin returns the flags used when nothing is stored
func DefaultPlugin() Plugin {
	return Plugin{
		ReplaceAllMetadata:   true,
		ReplaceImages:        true,
		ForceMetadataRefresh: true,
		CombineAllSeasons:    false,
	}
}

// PluginSource provides the current behavior flags
type PluginSource interface {
	Plugin() Plugin
}

// HookSettings tunes the scan hook
type HookSettings struct {
	AggressiveReasons []library.UpdateReason
	Cooldown          time.Duration
	MaxConcurrent     int
}

// HookSource provides the current scan hook settings
type HookSource interface {
	PluginSource
	Hook() HookSettings
}

// Plugin reads the behavior flags from storage
func (l *Loader) Plugin() Plugin {
	def := DefaultPlugin()
	return Plugin{
		ReplaceAllMetadata:   l.Bool(KeyReplaceAllMetadata, def.ReplaceAllMetadata),
		ReplaceImages:        l.Bool(KeyReplaceImages, def.ReplaceImages),
		ForceMetadataRefresh: l.Bool(KeyForceMetadataRefresh, def.ForceMetadataRefresh),
		CombineAllSeasons:    l.Bool(KeyCombineAllSeasons, def.CombineAllSeasons),
	}
}

// Hook reads the scan hook settings from storage
func (l *Loader) Hook() HookSettings {
	names := l.StringSlice(KeyAggressiveReasons, DefaultAggressiveReasons)
	reasons := make([]library.UpdateReason, 0, len(names))
	for _, name := range names {
		reasons = append(reasons, library.ParseUpdateReason(name))
	}

	maxConcurrent := l.Int(KeyHookMaxConcurrent, DefaultHookMaxConcurrent)
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return HookSettings{
		AggressiveReasons: reasons,
		Cooldown:          l.DurationSeconds(KeyHookCooldown, DefaultHookCooldownSeconds),
		MaxConcurrent:     maxConcurrent,
	}
}

// SavePlugin stores the behavior flags
func SavePlugin(store SettingsStore, p Plugin) error {
	values := map[string]bool{
		KeyReplaceAllMetadata:   p.ReplaceAllMetadata,
		KeyReplaceImages:        p.ReplaceImages,
		KeyForceMetadataRefresh: p.ForceMetadataRefresh,
		KeyCombineAllSeasons:    p.CombineAllSeasons,
	}
	for key, v := range values {
		if err := store.SetSettingJSON(key, v); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
	}
	return nil
}

// SaveAggressiveReasons stores the aggressive mode allow-list
func SaveAggressiveReasons(store SettingsStore, reasons []string) error {
	if reasons == nil {
		reasons = []string{}
	}
	if err := store.SetSettingJSON(KeyAggressiveReasons, reasons); err != nil {
		return fmt.Errorf("failed to save %s: %w", KeyAggressiveReasons, err)
	}
	return nil
}
