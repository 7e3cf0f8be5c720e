package jellyfin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltyorg/easierlife/internal/library"
)

const testKey = "0123456789abcdef"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", testKey)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientSendsTokenHeader(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		writeJSON(w, SystemInfo{ServerName: "media", Version: "10.10.3", ID: "abc"})
	})

	info, err := c.SystemInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "media", info.ServerName)
	assert.Equal(t, `MediaBrowser Token="`+testKey+`"`, got)
	assert.False(t, strings.HasSuffix(c.BaseURL(), "/"))
}

func TestClientStatusErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		default:
			http.Error(w, "boom", http.StatusBadGateway)
		}
	})

	err := c.do(context.Background(), http.MethodGet, "/missing", nil, nil, nil)
	assert.ErrorIs(t, err, library.ErrItemNotFound)

	err = c.do(context.Background(), http.MethodGet, "/System/Info", nil, nil, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, "boom", se.Body)
	assert.Equal(t, "/System/Info", se.Path)
}

func TestTestConnection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	err := c.TestConnection(context.Background())
	require.Error(t, err)
	assert.Equal(t, "invalid API key", err.Error())
}

func TestValidateToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case `MediaBrowser Token="user-token"`:
			writeJSON(w, SystemInfo{})
		case `MediaBrowser Token="broken"`:
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})

	ok, err := c.ValidateToken(context.Background(), "user-token")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ValidateToken(context.Background(), "stranger")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.ValidateToken(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.ValidateToken(context.Background(), "broken")
	assert.Error(t, err)
}

func TestLibraries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Library/VirtualFolders", r.URL.Path)
		writeJSON(w, []virtualFolder{
			{Name: "Movies", Locations: []string{"/data/movies"}, CollectionType: "movies", ItemID: "f137a2dd21bbc1b99aa5c0f6bf02a805"},
			{Name: "Shows", Locations: []string{"/data/tv"}, CollectionType: "tvshows", ItemID: "a656b907eb3a73532e40e44b968d0225"},
		})
	})

	libs, err := c.Libraries(context.Background())
	require.NoError(t, err)
	require.Len(t, libs, 2)
	assert.Equal(t, library.Library{ID: "f137a2dd21bbc1b99aa5c0f6bf02a805", Name: "Movies", Type: "movies", Paths: []string{"/data/movies"}}, libs[0])
	assert.Equal(t, "tvshows", libs[1].Type)
}

func TestGetItem(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Items":
			if r.URL.Query().Get("Ids") == "e1" {
				writeJSON(w, itemsResponse{Items: []itemDTO{{ID: "e1", Name: "Pilot", Type: "Episode", IndexNumber: library.IntPtr(1), SeasonID: "s1", SeriesID: "show"}}})
				return
			}
			writeJSON(w, itemsResponse{})
		case "/Library/VirtualFolders":
			writeJSON(w, []virtualFolder{{Name: "Movies", ItemID: "f137a2dd21bbc1b99aa5c0f6bf02a805"}})
		}
	})

	item, err := c.GetItem(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, library.KindEpisode, item.Kind)
	assert.Equal(t, 1, item.Index())
	assert.Equal(t, "s1", item.SeasonID)

	root, err := c.GetItem(context.Background(), "F137A2DD-21BB-C1B9-9AA5-C0F6BF02A805")
	require.NoError(t, err)
	assert.Equal(t, library.KindCollectionFolder, root.Kind)
	assert.Equal(t, "Movies", root.Name)

	_, err = c.GetItem(context.Background(), "nothing")
	assert.ErrorIs(t, err, library.ErrItemNotFound)
}

func TestRecursiveChildrenPages(t *testing.T) {
	const total = pageSize + 3
	var mu sync.Mutex
	var starts []string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "lib", q.Get("ParentId"))
		assert.Equal(t, "true", q.Get("Recursive"))

		mu.Lock()
		starts = append(starts, q.Get("StartIndex"))
		mu.Unlock()

		start, _ := strconv.Atoi(q.Get("StartIndex"))
		var resp itemsResponse
		for i := start; i < total && i < start+pageSize; i++ {
			resp.Items = append(resp.Items, itemDTO{ID: strconv.Itoa(i), Type: "Movie"})
		}
		writeJSON(w, resp)
	})

	items, err := c.RecursiveChildren(context.Background(), "lib")
	require.NoError(t, err)
	assert.Len(t, items, total)
	assert.Equal(t, "0", items[0].ID)
	assert.Equal(t, []string{"0", strconv.Itoa(pageSize)}, starts)
}

func TestSeasonsAndEpisodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Shows/show/Seasons":
			writeJSON(w, itemsResponse{Items: []itemDTO{
				{ID: "s1", Type: "Season", IndexNumber: library.IntPtr(1), ParentID: "show"},
				{ID: "s2", Type: "Season", IndexNumber: library.IntPtr(2), ParentID: "show"},
			}})
		case "/Shows/show/Episodes":
			assert.Equal(t, "s2", r.URL.Query().Get("seasonId"))
			writeJSON(w, itemsResponse{Items: []itemDTO{{ID: "e9", Type: "Episode", SeasonID: "s2"}}})
		default:
			http.NotFound(w, r)
		}
	})

	series := &library.Item{ID: "show", Name: "Show", Kind: library.KindSeries}
	seasons, err := c.Seasons(context.Background(), series)
	require.NoError(t, err)
	require.Len(t, seasons, 2)

	episodes, err := c.Episodes(context.Background(), &library.Item{ID: "s2", Kind: library.KindSeason, ParentID: "show"})
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, "e9", episodes[0].ID)
}

func TestUpdateItemKeepsUnknownFields(t *testing.T) {
	var posted map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/Items":
			_, _ = io.WriteString(w, `{"Items":[{"Id":"e2","Name":"Old","Type":"Episode","IndexNumber":1,"SeasonId":"s2","ParentId":"s2","Overview":"keep me","Tags":["a"]}]}`)
		case r.Method == http.MethodPost && r.URL.Path == "/Items/e2":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})

	item := &library.Item{ID: "e2", Name: "Old", Kind: library.KindEpisode, IndexNumber: library.IntPtr(4), SeasonID: "s1", ParentID: "s1"}
	require.NoError(t, c.UpdateItem(context.Background(), item, library.ReasonMetadataEdit))

	require.NotNil(t, posted)
	assert.Equal(t, "keep me", posted["Overview"])
	assert.Equal(t, []any{"a"}, posted["Tags"])
	assert.Equal(t, float64(4), posted["IndexNumber"])
	assert.Equal(t, "s1", posted["SeasonId"])
	assert.Equal(t, "s1", posted["ParentId"])
}

func TestUpdateItemMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, rawItemsResponse{})
	})

	err := c.UpdateItem(context.Background(), &library.Item{ID: "gone"}, library.ReasonMetadataEdit)
	assert.True(t, errors.Is(err, library.ErrItemNotFound))
}

func TestRefreshMetadataQuery(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.RefreshMetadata(context.Background(), &library.Item{ID: "m1", Name: "Movie"}, library.RefreshOptions{
		ReplaceAllMetadata: true,
		ReplaceImages:      false,
		MetadataMode:       library.RefreshModeFullRefresh,
		ImageMode:          library.RefreshModeFullRefresh,
	})
	require.NoError(t, err)
	assert.Equal(t, "/Items/m1/Refresh", gotPath)
	assert.Equal(t, "FullRefresh", gotQuery["MetadataRefreshMode"])
	assert.Equal(t, "FullRefresh", gotQuery["ImageRefreshMode"])
	assert.Equal(t, "true", gotQuery["ReplaceAllMetadata"])
	assert.Equal(t, "false", gotQuery["ReplaceAllImages"])
	assert.Equal(t, "false", gotQuery["Recursive"])
}
