package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/easierlife/internal/activity"
	"github.com/saltyorg/easierlife/internal/config"
)

const (
	msgActive   = "✅ Plugin is ACTIVE - All library refreshes will replace ALL metadata automatically!"
	msgInactive = "⚠️ Plugin is DISABLED - Enable 'Replace All Metadata' in plugin settings to activate."
)

// StatusResponse is returned by the Status endpoint
type StatusResponse struct {
	PluginName    string            `json:"PluginName"`
	PluginVersion string            `json:"PluginVersion"`
	IsEnabled     bool              `json:"IsEnabled"`
	Configuration config.Plugin     `json:"Configuration"`
	Statistics    *StatusStatistics `json:"Statistics"`
	Message       string            `json:"Message"`
}

// StatusStatistics summarizes the activity tracker
type StatusStatistics struct {
	TotalItemsProcessed int64      `json:"TotalItemsProcessed"`
	TotalItemsSucceeded int64      `json:"TotalItemsSucceeded"`
	TotalItemsFailed    int64      `json:"TotalItemsFailed"`
	LastActivityTime    *time.Time `json:"LastActivityTime"`
	PluginStartTime     *time.Time `json:"PluginStartTime"`
	RecentActivityCount int        `json:"RecentActivityCount"`
}

// ConfigurationBody is read and written by the Configuration endpoints
type ConfigurationBody struct {
	config.Plugin
	AggressiveUpdateReasons []string `json:"AggressiveUpdateReasons"`
}

// Status reports configuration and statistics
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	plugin := h.loader.Plugin()

	resp := StatusResponse{
		PluginName:    PluginName,
		PluginVersion: h.version,
		IsEnabled:     plugin.ReplaceAllMetadata,
		Configuration: plugin,
		Message:       msgInactive,
	}
	if plugin.ReplaceAllMetadata {
		resp.Message = msgActive
	}

	if h.tracker != nil {
		stats := h.tracker.Statistics()
		start := stats.PluginStartTime
		resp.Statistics = &StatusStatistics{
			TotalItemsProcessed: stats.TotalItemsProcessed,
			TotalItemsSucceeded: stats.TotalItemsSucceeded,
			TotalItemsFailed:    stats.TotalItemsFailed,
			LastActivityTime:    stats.LastActivityTime,
			PluginStartTime:     &start,
			RecentActivityCount: len(stats.RecentActivity),
		}
	}

	h.jsonResponse(w, resp, http.StatusOK)
}

// Activity returns the most recent activity records, newest first
func (h *Handlers) Activity(w http.ResponseWriter, r *http.Request) {
	records := h.tracker.RecentActivity(activity.RecentLimit)
	if records == nil {
		records = []activity.Record{}
	}
	h.jsonResponse(w, records, http.StatusOK)
}

// ResetStatistics clears the activity tracker
func (h *Handlers) ResetStatistics(w http.ResponseWriter, r *http.Request) {
	h.tracker.Reset()
	log.Info().Msg("Statistics reset")
	w.WriteHeader(http.StatusNoContent)
}

// GetConfiguration returns the stored behavior flags and aggressive reasons
func (h *Handlers) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.configuration(), http.StatusOK)
}

// UpdateConfiguration stores new behavior flags. Omitting AggressiveUpdateReasons keeps the stored list.
func (h *Handlers) UpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	var body ConfigurationBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		h.jsonError(w, fmt.Sprintf("Invalid configuration: %s", err.Error()), http.StatusBadRequest)
		return
	}

	if err := config.SavePlugin(h.settings, body.Plugin); err != nil {
		h.internalError(w, "Error saving configuration", err)
		return
	}
	if body.AggressiveUpdateReasons != nil {
		if err := config.SaveAggressiveReasons(h.settings, body.AggressiveUpdateReasons); err != nil {
			h.internalError(w, "Error saving configuration", err)
			return
		}
	}

	log.Info().
		Bool("replace_all_metadata", body.ReplaceAllMetadata).
		Bool("replace_images", body.ReplaceImages).
		Bool("force_metadata_refresh", body.ForceMetadataRefresh).
		Bool("combine_all_seasons", body.CombineAllSeasons).
		Msg("Configuration updated")

	h.jsonResponse(w, h.configuration(), http.StatusOK)
}

func (h *Handlers) configuration() ConfigurationBody {
	hook := h.loader.Hook()
	reasons := make([]string, 0, len(hook.AggressiveReasons))
	for _, r := range hook.AggressiveReasons {
		reasons = append(reasons, string(r))
	}
	return ConfigurationBody{Plugin: h.loader.Plugin(), AggressiveUpdateReasons: reasons}
}

