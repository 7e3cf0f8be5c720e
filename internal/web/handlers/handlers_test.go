package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltyorg/easierlife/internal/activity"
	"github.com/saltyorg/easierlife/internal/config"
	"github.com/saltyorg/easierlife/internal/events"
	"github.com/saltyorg/easierlife/internal/library"
	"github.com/saltyorg/easierlife/internal/library/librarytest"
	"github.com/saltyorg/easierlife/internal/metadata"
	"github.com/saltyorg/easierlife/internal/seasons"
)

const (
	libraryID = "0f8fad5bd9cb469fa16570867728950e"
	showsID   = "7c9e6679742540de944be07fc1f90ae7"
	seriesID  = "e02fd0e4b5b044e397d2ab6c5d1e07a1"
	season1ID = "4c1a2f3d9e8b4f7a8c6d5e4f3a2b1c01"
	season2ID = "4c1a2f3d9e8b4f7a8c6d5e4f3a2b1c02"
	movieAID  = "a0000000000000000000000000000001"
	movieBID  = "a0000000000000000000000000000002"
)

type memStore struct {
	values map[string]string
}

func (m *memStore) GetSetting(key string) (string, error) {
	return m.values[key], nil
}

func (m *memStore) SetSettingJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.values[key] = string(data)
	return nil
}

type fakeJournal struct {
	moves    []seasons.Move
	err      error
	seriesID string
	limit    int
}

func (f *fakeJournal) ListMoves(_ context.Context, seriesID string, limit int) ([]seasons.Move, error) {
	f.seriesID = seriesID
	f.limit = limit
	return f.moves, f.err
}

type fixture struct {
	store   *memStore
	items   *librarytest.Memory
	tracker *activity.Tracker
	bus     *events.Bus
	journal *fakeJournal
	h       *Handlers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	items := librarytest.NewMemory()
	items.Add(
		&library.Item{ID: libraryID, Name: "Movies", Kind: library.KindCollectionFolder},
		&library.Item{ID: movieAID, Name: "Movie A", Kind: library.KindMovie, ParentID: libraryID},
		&library.Item{ID: movieBID, Name: "Movie B", Kind: library.KindMovie, ParentID: libraryID},
		&library.Item{ID: showsID, Name: "Shows", Kind: library.KindCollectionFolder},
		&library.Item{ID: seriesID, Name: "Show", Kind: library.KindSeries, ParentID: showsID},
		&library.Item{ID: season1ID, Name: "Season 1", Kind: library.KindSeason, ParentID: seriesID, SeriesID: seriesID, IndexNumber: library.IntPtr(1)},
		&library.Item{ID: season2ID, Name: "Season 2", Kind: library.KindSeason, ParentID: seriesID, SeriesID: seriesID, IndexNumber: library.IntPtr(2)},
		&library.Item{ID: "e1", Name: "E1", Kind: library.KindEpisode, ParentID: season1ID, SeasonID: season1ID, SeriesID: seriesID, IndexNumber: library.IntPtr(1)},
		&library.Item{ID: "e2", Name: "E2", Kind: library.KindEpisode, ParentID: season2ID, SeasonID: season2ID, SeriesID: seriesID, IndexNumber: library.IntPtr(1)},
	)

	f := &fixture{
		store:   &memStore{values: map[string]string{}},
		items:   items,
		tracker: activity.New(),
		bus:     events.NewBus(),
		journal: &fakeJournal{},
	}
	f.h = New(Deps{
		Settings:  f.store,
		Items:     items,
		Libraries: items,
		Replacer:  metadata.NewReplacer(items, items, f.tracker),
		Combiner:  seasons.NewCombiner(items, nil),
		Tracker:   f.tracker,
		Journal:   f.journal,
		Events:    f.bus,
		Version:   "1.2.3",
	})
	t.Cleanup(func() { _ = f.bus.Close() })
	return f
}

func (f *fixture) setPlugin(t *testing.T, p config.Plugin) {
	t.Helper()
	require.NoError(t, config.SavePlugin(f.store, p))
}

func serve(handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	handler(rec, r)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestReplaceMetadata(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.ReplaceMetadata, http.MethodPost, "/Library/ReplaceMetadata?libraryId="+libraryID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{movieAID, movieBID}, f.items.RefreshedIDs())
	for _, r := range f.items.Refreshes() {
		assert.True(t, r.Options.ReplaceAllMetadata)
		assert.True(t, r.Options.ReplaceImages)
	}
	assert.Equal(t, int64(2), f.tracker.Statistics().TotalItemsProcessed)
}

func TestReplaceMetadataDashedGUID(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.ReplaceMetadata, http.MethodPost, "/Library/ReplaceMetadata?libraryId=0F8FAD5B-D9CB-469F-A165-70867728950E", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, f.items.RefreshedIDs(), 2)
}

func TestReplaceMetadataImagesRequireBothFlags(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		config bool
		want   bool
	}{
		{"default query, config on", "", true, true},
		{"query off", "&replaceImages=false", true, false},
		{"config off", "&replaceImages=true", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.setPlugin(t, config.Plugin{ReplaceAllMetadata: true, ReplaceImages: tt.config})

			rec := serve(f.h.ReplaceMetadata, http.MethodPost, "/Library/ReplaceMetadata?libraryId="+libraryID+tt.query, "")
			require.Equal(t, http.StatusNoContent, rec.Code)
			for _, r := range f.items.Refreshes() {
				assert.Equal(t, tt.want, r.Options.ReplaceImages)
			}
		})
	}
}

func TestReplaceMetadataRejections(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.ReplaceMetadata, http.MethodPost, "/Library/ReplaceMetadata", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(f.h.ReplaceMetadata, http.MethodPost, "/Library/ReplaceMetadata?libraryId=not-a-guid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "not-a-guid")

	rec = serve(f.h.ReplaceMetadata, http.MethodPost, "/Library/ReplaceMetadata?libraryId="+libraryID+"&replaceImages=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.setPlugin(t, config.Plugin{ReplaceAllMetadata: false, ReplaceImages: true})
	rec = serve(f.h.ReplaceMetadata, http.MethodPost, "/Library/ReplaceMetadata?libraryId="+libraryID, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgReplaceDisabled, errorMessage(t, rec))

	assert.Empty(t, f.items.Refreshes())
}

func TestReplaceMetadataUnknownLibrary(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.ReplaceMetadata, http.MethodPost, "/Library/ReplaceMetadata?libraryId=11111111111111111111111111111111", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.items.Refreshes())
}

func TestReplaceMetadataItemFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.items.RefreshErrors[movieAID] = errors.New("provider timeout")

	rec := serve(f.h.ReplaceMetadata, http.MethodPost, "/Library/ReplaceMetadata?libraryId="+libraryID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	stats := f.tracker.Statistics()
	assert.Equal(t, int64(2), stats.TotalItemsProcessed)
	assert.Equal(t, int64(1), stats.TotalItemsFailed)
}

func TestCombineSeasons(t *testing.T) {
	f := newFixture(t)
	f.setPlugin(t, config.Plugin{ReplaceAllMetadata: true, CombineAllSeasons: true})

	rec := serve(f.h.CombineSeasons, http.MethodPost, "/Library/CombineSeasons?seriesId="+seriesID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 2, f.items.EpisodeCount(season1ID))
	assert.Equal(t, 0, f.items.EpisodeCount(season2ID))
	assert.Equal(t, 2, f.items.Item("e2").Index())
}

func TestCombineSeasonsErrors(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.CombineSeasons, http.MethodPost, "/Library/CombineSeasons?seriesId="+seriesID, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgCombineDisabled, errorMessage(t, rec))

	f.setPlugin(t, config.Plugin{CombineAllSeasons: true})

	missing := "22222222222222222222222222222222"
	rec = serve(f.h.CombineSeasons, http.MethodPost, "/Library/CombineSeasons?seriesId="+missing, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Series with ID "+missing+" not found.", errorMessage(t, rec))

	rec = serve(f.h.CombineSeasons, http.MethodPost, "/Library/CombineSeasons?seriesId="+movieAID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(f.h.CombineSeasons, http.MethodPost, "/Library/CombineSeasons?seriesId=xyz", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.items.UpdateErrors["e2"] = errors.New("database is locked")
	rec = serve(f.h.CombineSeasons, http.MethodPost, "/Library/CombineSeasons?seriesId="+seriesID, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.HasPrefix(errorMessage(t, rec), "Error combining seasons: "))
}

func TestCombineSeasonsForLibrary(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.CombineSeasonsForLibrary, http.MethodPost, "/Library/CombineSeasonsForLibrary?libraryId="+showsID, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.setPlugin(t, config.Plugin{CombineAllSeasons: true})
	rec = serve(f.h.CombineSeasonsForLibrary, http.MethodPost, "/Library/CombineSeasonsForLibrary?libraryId="+showsID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 2, f.items.EpisodeCount(season1ID))
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.tracker.RecordItemProcessed(&library.Item{ID: "x", Name: "X", Kind: library.KindMovie}, true)

	rec := serve(f.h.Status, http.MethodGet, "/EasierLife/Status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, PluginName, resp.PluginName)
	assert.Equal(t, "1.2.3", resp.PluginVersion)
	assert.True(t, resp.IsEnabled)
	assert.Equal(t, config.DefaultPlugin(), resp.Configuration)
	assert.Equal(t, msgActive, resp.Message)
	require.NotNil(t, resp.Statistics)
	assert.Equal(t, int64(1), resp.Statistics.TotalItemsProcessed)
	assert.Equal(t, 1, resp.Statistics.RecentActivityCount)
	assert.NotNil(t, resp.Statistics.LastActivityTime)

	f.setPlugin(t, config.Plugin{})
	rec = serve(f.h.Status, http.MethodGet, "/EasierLife/Status", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.IsEnabled)
	assert.Equal(t, msgInactive, resp.Message)
}

func TestStatusWithoutTracker(t *testing.T) {
	h := New(Deps{Settings: &memStore{values: map[string]string{}}})

	rec := serve(h.Status, http.MethodGet, "/EasierLife/Status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Statistics":null`)
	assert.Contains(t, rec.Body.String(), `"PluginVersion":"0.0.0-dev"`)

	rec = serve(h.Activity, http.MethodGet, "/EasierLife/Activity", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(h.ResetStatistics, http.MethodPost, "/EasierLife/ResetStatistics", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestActivityAndReset(t *testing.T) {
	f := newFixture(t)
	for i := range activity.RecentLimit + 5 {
		f.tracker.RecordItemProcessed(&library.Item{ID: string(rune('a' + i)), Name: "Item", Kind: library.KindMovie}, true)
		time.Sleep(time.Millisecond)
	}

	rec := serve(f.h.Activity, http.MethodGet, "/EasierLife/Activity", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []activity.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, activity.RecentLimit)
	assert.False(t, records[0].ProcessedAt.Before(records[len(records)-1].ProcessedAt))

	rec = serve(f.h.ResetStatistics, http.MethodPost, "/EasierLife/ResetStatistics", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, f.tracker.Statistics().TotalItemsProcessed)

	rec = serve(f.h.Activity, http.MethodGet, "/EasierLife/Activity", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestConfiguration(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.GetConfiguration, http.MethodGet, "/EasierLife/Configuration", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got ConfigurationBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, config.DefaultPlugin(), got.Plugin)
	assert.Equal(t, config.DefaultAggressiveReasons, got.AggressiveUpdateReasons)

	body := `{"ReplaceAllMetadata":true,"ReplaceImages":false,"ForceMetadataRefresh":false,"CombineAllSeasons":true}`
	rec = serve(f.h.UpdateConfiguration, http.MethodPost, "/EasierLife/Configuration", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, config.Plugin{ReplaceAllMetadata: true, CombineAllSeasons: true}, got.Plugin)
	assert.Equal(t, config.DefaultAggressiveReasons, got.AggressiveUpdateReasons)

	body = `{"ReplaceAllMetadata":true,"ForceMetadataRefresh":true,"AggressiveUpdateReasons":["MetadataDownload"]}`
	rec = serve(f.h.UpdateConfiguration, http.MethodPost, "/EasierLife/Configuration", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"MetadataDownload"}, got.AggressiveUpdateReasons)
	assert.Equal(t, []library.UpdateReason{library.ReasonMetadataDownload}, config.NewLoader(f.store).Hook().AggressiveReasons)

	rec = serve(f.h.UpdateConfiguration, http.MethodPost, "/EasierLife/Configuration", `{"Unknown":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serve(f.h.UpdateConfiguration, http.MethodPost, "/EasierLife/Configuration", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsWebhook(t *testing.T) {
	f := newFixture(t)
	ch := f.bus.SubscribeAll(4)

	body := `{"NotificationType":"ItemUpdated","ItemId":"` + movieAID + `","UpdateReason":"metadatadownload","Name":"Movie A"}`
	rec := serve(f.h.Events, http.MethodPost, "/EasierLife/Events", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case e := <-ch:
		assert.Equal(t, events.ItemUpdated, e.Type)
		assert.Equal(t, movieAID, e.ItemID)
		assert.Equal(t, library.ReasonMetadataDownload, e.Reason)
		assert.Equal(t, events.SourceWebhook, e.Source)
	case <-time.After(time.Second):
		t.Fatal("event was not published")
	}

	body = `{"NotificationType":"ItemAdded","ItemId":"0F8FAD5B-D9CB-469F-A165-70867728950E"}`
	rec = serve(f.h.Events, http.MethodPost, "/EasierLife/Events", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	e := <-ch
	assert.Equal(t, events.ItemAdded, e.Type)
	assert.Equal(t, libraryID, e.ItemID)
	assert.Equal(t, library.ReasonNone, e.Reason)
}

func TestEventsWebhookRejections(t *testing.T) {
	f := newFixture(t)
	ch := f.bus.SubscribeAll(4)

	rec := serve(f.h.Events, http.MethodPost, "/EasierLife/Events", `{"NotificationType":"PlaybackStart","ItemId":"`+movieAID+`"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(f.h.Events, http.MethodPost, "/EasierLife/Events", `{"NotificationType":"ItemAdded","ItemId":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(f.h.Events, http.MethodPost, "/EasierLife/Events", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, ch)
}

func TestCombinations(t *testing.T) {
	f := newFixture(t)
	f.journal.moves = []seasons.Move{{SeriesID: seriesID, EpisodeID: "e2", FromSeasonID: season2ID, ToSeasonID: season1ID}}

	rec := serve(f.h.Combinations, http.MethodGet, "/EasierLife/Combinations?seriesId="+seriesID+"&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var moves []seasons.Move
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &moves))
	assert.Len(t, moves, 1)
	assert.Equal(t, seriesID, f.journal.seriesID)
	assert.Equal(t, 5, f.journal.limit)

	f.journal.moves = nil
	rec = serve(f.h.Combinations, http.MethodGet, "/EasierLife/Combinations", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, "", f.journal.seriesID)
	assert.Equal(t, 100, f.journal.limit)

	rec = serve(f.h.Combinations, http.MethodGet, "/EasierLife/Combinations?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serve(f.h.Combinations, http.MethodGet, "/EasierLife/Combinations?seriesId=bad", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.journal.err = errors.New("disk I/O error")
	rec = serve(f.h.Combinations, http.MethodGet, "/EasierLife/Combinations", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error listing combinations: disk I/O error", errorMessage(t, rec))
}

func TestLibraries(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.Libraries, http.MethodGet, "/EasierLife/Libraries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var libs []library.Library
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &libs))
	require.Len(t, libs, 2)
	assert.Equal(t, "Movies", libs[0].Name)
	assert.Equal(t, "Shows", libs[1].Name)
}
