package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/easierlife/internal/events"
	"github.com/saltyorg/easierlife/internal/library"
	"github.com/saltyorg/easierlife/internal/seasons"
)

// maxCombinationsLimit caps the Combinations page size
const maxCombinationsLimit = 1000

// webhookPayload is the subset of a Jellyfin webhook notification that is used
type webhookPayload struct {
	NotificationType string `json:"NotificationType"`
	ItemID           string `json:"ItemId"`
	ItemType         string `json:"ItemType"`
	Name             string `json:"Name"`
	UpdateReason     string `json:"UpdateReason"`
}

var reasonNames = []library.UpdateReason{
	library.ReasonNone,
	library.ReasonFileMetadataImport,
	library.ReasonMetadataImport,
	library.ReasonMetadataDownload,
	library.ReasonImageUpdate,
	library.ReasonMetadataEdit,
	library.ReasonUserDataSaved,
	library.ReasonChapterMetadataDownload,
}

// canonicalReason matches a reason case-insensitively, keeping unknown values as sent
func canonicalReason(s string) library.UpdateReason {
	for _, r := range reasonNames {
		if strings.EqualFold(string(r), s) {
			return r
		}
	}
	return library.ParseUpdateReason(s)
}

// Events accepts item notifications from the Jellyfin webhook plugin and publishes them on the bus.
// Notification types other than ItemAdded and ItemUpdated are acknowledged and ignored.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&payload); err != nil {
		h.jsonError(w, fmt.Sprintf("Invalid event payload: %s", err.Error()), http.StatusBadRequest)
		return
	}

	var typ events.Type
	switch strings.ToLower(payload.NotificationType) {
	case "itemadded":
		typ = events.ItemAdded
	case "itemupdated":
		typ = events.ItemUpdated
	default:
		log.Trace().Str("type", payload.NotificationType).Msg("Ignoring webhook notification")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	itemID, err := parseGUID(payload.ItemID)
	if err != nil {
		h.jsonError(w, fmt.Sprintf("ItemId is not a valid GUID: %s", payload.ItemID), http.StatusBadRequest)
		return
	}

	e := events.NewItemEvent(typ, itemID, canonicalReason(payload.UpdateReason), events.SourceWebhook)
	if err := h.events.Publish(r.Context(), e); err != nil {
		h.internalError(w, "Error publishing event", err)
		return
	}

	log.Debug().
		Str("type", string(typ)).
		Str("item_id", itemID).
		Str("item", payload.Name).
		Str("reason", string(e.Reason)).
		Msg("Accepted webhook event")

	w.WriteHeader(http.StatusAccepted)
}

// Combinations lists journaled episode moves, newest first, optionally for one series
func (h *Handlers) Combinations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	seriesID := ""
	if raw := q.Get("seriesId"); raw != "" {
		id, err := parseGUID(raw)
		if err != nil {
			h.jsonError(w, fmt.Sprintf("seriesId is not a valid GUID: %s", raw), http.StatusBadRequest)
			return
		}
		seriesID = id
	}

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxCombinationsLimit {
			h.jsonError(w, fmt.Sprintf("limit must be between 1 and %d", maxCombinationsLimit), http.StatusBadRequest)
			return
		}
		limit = v
	}

	if h.journal == nil {
		h.jsonResponse(w, []seasons.Move{}, http.StatusOK)
		return
	}

	moves, err := h.journal.ListMoves(r.Context(), seriesID, limit)
	if err != nil {
		h.internalError(w, "Error listing combinations", err)
		return
	}
	if moves == nil {
		moves = []seasons.Move{}
	}
	h.jsonResponse(w, moves, http.StatusOK)
}
