package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/saltyorg/easierlife/internal/library"
	"github.com/saltyorg/easierlife/internal/web/sse"
)

const (
	msgReplaceDisabled = "Metadata replacement is disabled in plugin configuration."
	msgCombineDisabled = "Season combination is disabled in plugin configuration."
)

// batchEvent is the payload of batch_started and batch_completed events
type batchEvent struct {
	Operation string               `json:"Operation"`
	TargetID  string               `json:"TargetId"`
	Result    *library.BatchResult `json:"Result,omitempty"`
}

// ReplaceMetadata replaces metadata for every item in a library.
// Effective image replacement is the query flag AND the configured flag.
func (h *Handlers) ReplaceMetadata(w http.ResponseWriter, r *http.Request) {
	libraryID, ok := h.guidParam(w, r, "libraryId")
	if !ok {
		return
	}

	replaceImages := true
	if raw := r.URL.Query().Get("replaceImages"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.jsonError(w, fmt.Sprintf("replaceImages must be true or false: %s", raw), http.StatusBadRequest)
			return
		}
		replaceImages = v
	}

	plugin := h.loader.Plugin()
	if !plugin.ReplaceAllMetadata {
		h.jsonError(w, msgReplaceDisabled, http.StatusBadRequest)
		return
	}
	replaceImages = replaceImages && plugin.ReplaceImages

	h.broker.Broadcast(sse.Event{Type: sse.EventBatchStarted, Data: batchEvent{Operation: "replace-metadata", TargetID: libraryID}})

	result, err := h.replacer.ReplaceMetadataForLibrary(r.Context(), libraryID, replaceImages)
	if err != nil {
		h.internalError(w, "Error replacing metadata", err)
		return
	}

	h.broker.Broadcast(sse.Event{Type: sse.EventBatchCompleted, Data: batchEvent{Operation: "replace-metadata", TargetID: libraryID, Result: &result}})

	w.WriteHeader(http.StatusNoContent)
}

// CombineSeasons merges every season of one series into its first season
func (h *Handlers) CombineSeasons(w http.ResponseWriter, r *http.Request) {
	seriesID, ok := h.guidParam(w, r, "seriesId")
	if !ok {
		return
	}

	if !h.loader.Plugin().CombineAllSeasons {
		h.jsonError(w, msgCombineDisabled, http.StatusBadRequest)
		return
	}

	notFound := fmt.Sprintf("Series with ID %s not found.", seriesID)
	series, err := h.items.GetItem(r.Context(), seriesID)
	if errors.Is(err, library.ErrItemNotFound) {
		h.jsonError(w, notFound, http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, "Error combining seasons", err)
		return
	}
	if series.Kind != library.KindSeries {
		h.jsonError(w, notFound, http.StatusNotFound)
		return
	}

	if _, err := h.combiner.CombineSeasons(r.Context(), series); err != nil {
		h.internalError(w, "Error combining seasons", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CombineSeasonsForLibrary merges seasons for every series in a library
func (h *Handlers) CombineSeasonsForLibrary(w http.ResponseWriter, r *http.Request) {
	libraryID, ok := h.guidParam(w, r, "libraryId")
	if !ok {
		return
	}

	if !h.loader.Plugin().CombineAllSeasons {
		h.jsonError(w, msgCombineDisabled, http.StatusBadRequest)
		return
	}

	h.broker.Broadcast(sse.Event{Type: sse.EventBatchStarted, Data: batchEvent{Operation: "combine-seasons", TargetID: libraryID}})

	result, err := h.combiner.CombineSeasonsForLibrary(r.Context(), libraryID)
	if err != nil {
		h.internalError(w, "Error combining seasons", err)
		return
	}

	h.broker.Broadcast(sse.Event{Type: sse.EventBatchCompleted, Data: batchEvent{Operation: "combine-seasons", TargetID: libraryID, Result: &result}})

	w.WriteHeader(http.StatusNoContent)
}

// Libraries lists the media server's libraries
func (h *Handlers) Libraries(w http.ResponseWriter, r *http.Request) {
	if h.libraries == nil {
		h.jsonResponse(w, []library.Library{}, http.StatusOK)
		return
	}

	libs, err := h.libraries.Libraries(r.Context())
	if err != nil {
		h.internalError(w, "Error listing libraries", err)
		return
	}
	if libs == nil {
		libs = []library.Library{}
	}
	h.jsonResponse(w, libs, http.StatusOK)
}
