package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/easierlife/internal/activity"
	"github.com/saltyorg/easierlife/internal/config"
	"github.com/saltyorg/easierlife/internal/events"
	"github.com/saltyorg/easierlife/internal/library"
	"github.com/saltyorg/easierlife/internal/metadata"
	"github.com/saltyorg/easierlife/internal/seasons"
	"github.com/saltyorg/easierlife/internal/web/sse"
)

const (
	// PluginName is reported by the status endpoint
	PluginName = "Jellyfin Easier Life"
	// PluginID is the plugin GUID reported to Jellyfin clients
	PluginID = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"
)

// MoveLister reads the season combination journal
type MoveLister interface {
	ListMoves(ctx context.Context, seriesID string, limit int) ([]seasons.Move, error)
}

// Publisher puts item events on the bus
type Publisher interface {
	Publish(ctx context.Context, e events.ItemEvent) error
}

// Deps are the collaborators used by the handlers. Tracker, Journal, Libraries and Broker may be nil.
type Deps struct {
	Settings  config.SettingsStore
	Items     library.Repository
	Libraries library.LibraryLister
	Replacer  *metadata.Replacer
	Combiner  *seasons.Combiner
	Tracker   *activity.Tracker
	Journal   MoveLister
	Events    Publisher
	Broker    *sse.Broker
	Version   string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	settings  config.SettingsStore
	loader    *config.Loader
	items     library.Repository
	libraries library.LibraryLister
	replacer  *metadata.Replacer
	combiner  *seasons.Combiner
	tracker   *activity.Tracker
	journal   MoveLister
	events    Publisher
	broker    *sse.Broker
	version   string
}

// New creates a new Handlers instance
func New(d Deps) *Handlers {
	version := d.Version
	if version == "" {
		version = "0.0.0-dev"
	}
	return &Handlers{
		settings:  d.Settings,
		loader:    config.NewLoader(d.Settings),
		items:     d.Items,
		libraries: d.Libraries,
		replacer:  d.Replacer,
		combiner:  d.Combiner,
		tracker:   d.Tracker,
		journal:   d.Journal,
		events:    d.Events,
		broker:    d.Broker,
		version:   version,
	}
}

// jsonError sends a JSON error response
func (h *Handlers) jsonError(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, map[string]string{"error": message}, status)
}

func (h *Handlers) jsonResponse(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// internalError logs err and answers 500 with a prefixed message
func (h *Handlers) internalError(w http.ResponseWriter, prefix string, err error) {
	log.Error().Err(err).Msg(prefix)
	h.jsonError(w, fmt.Sprintf("%s: %s", prefix, err.Error()), http.StatusInternalServerError)
}

// guidParam reads a required GUID query parameter and returns it in Jellyfin's
// compact form (32 lowercase hex digits). It writes a 400 and returns false on failure.
func (h *Handlers) guidParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		h.jsonError(w, fmt.Sprintf("%s is required.", name), http.StatusBadRequest)
		return "", false
	}
	id, err := parseGUID(raw)
	if err != nil {
		h.jsonError(w, fmt.Sprintf("%s is not a valid GUID: %s", name, raw), http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func parseGUID(raw string) (string, error) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", err
	}
	return library.NormalizeID(u.String()), nil
}
