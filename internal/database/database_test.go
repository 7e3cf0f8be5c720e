package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltyorg/easierlife/internal/config"
	"github.com/saltyorg/easierlife/internal/library"
	"github.com/saltyorg/easierlife/internal/seasons"
)

func openTestDB(t *testing.T) *Manager {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())

	v, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestSettingsRoundTrip(t *testing.T) {
	db := openTestDB(t)

	val, err := db.GetSetting("missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, db.SetSetting("a", "1"))
	require.NoError(t, db.SetSetting("a", "2"))
	val, err = db.GetSetting("a")
	require.NoError(t, err)
	assert.Equal(t, "2", val)

	require.NoError(t, db.SetSettingJSON("list", []string{"x", "y"}))
	var list []string
	require.NoError(t, db.GetSettingJSON("list", &list))
	assert.Equal(t, []string{"x", "y"}, list)

	require.NoError(t, db.DeleteSetting("a"))
	all, err := db.GetAllSettings()
	require.NoError(t, err)
	assert.NotContains(t, all, "a")
	assert.Contains(t, all, "list")
}

func TestInitializeDefaultsKeepsExistingValues(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SetSettingJSON(config.KeyReplaceAllMetadata, false))

	require.NoError(t, db.InitializeDefaults())
	require.NoError(t, db.InitializeDefaults())

	loader := config.NewLoader(db)
	p := loader.Plugin()
	assert.False(t, p.ReplaceAllMetadata)
	assert.True(t, p.ReplaceImages)
	assert.True(t, p.ForceMetadataRefresh)
	assert.False(t, p.CombineAllSeasons)

	hook := loader.Hook()
	assert.Contains(t, hook.AggressiveReasons, library.ReasonChapterMetadataDownload)
	assert.Equal(t, config.DefaultHookMaxConcurrent, hook.MaxConcurrent)
	assert.Empty(t, loader.String(config.KeyScheduleReplaceMetadata, ""))
	assert.Equal(t, "0 4 * * 0", loader.String(config.KeyScheduleMaintenance, ""))
}

func TestSeasonMoves(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordMove(ctx, seasons.Move{
		SeriesID: "S", SeriesName: "Show", EpisodeID: "e3", EpisodeName: "Third",
		FromSeasonID: "s2", ToSeasonID: "s1",
		FromIndex: library.IntPtr(1), ToIndex: library.IntPtr(3), MovedAt: base,
	}))
	require.NoError(t, db.RecordMove(ctx, seasons.Move{
		SeriesID: "S", EpisodeID: "e4", FromSeasonID: "s2", ToSeasonID: "s1", MovedAt: base.Add(time.Minute),
	}))
	require.NoError(t, db.RecordMove(ctx, seasons.Move{
		SeriesID: "T", EpisodeID: "x", FromSeasonID: "t2", ToSeasonID: "t1", MovedAt: base,
	}))

	moves, err := db.ListMoves(ctx, "S", 0)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, "e4", moves[0].EpisodeID)
	assert.Nil(t, moves[0].FromIndex)
	assert.Equal(t, "e3", moves[1].EpisodeID)
	require.NotNil(t, moves[1].ToIndex)
	assert.Equal(t, 3, *moves[1].ToIndex)
	assert.True(t, base.Equal(moves[1].MovedAt))

	all, err := db.ListMoves(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := db.ListMoves(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPruneSeasonMoves(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordMove(ctx, seasons.Move{SeriesID: "S", EpisodeID: "old", FromSeasonID: "a", ToSeasonID: "b", MovedAt: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, db.RecordMove(ctx, seasons.Move{SeriesID: "S", EpisodeID: "new", FromSeasonID: "a", ToSeasonID: "b", MovedAt: time.Now()}))

	n, err := db.PruneSeasonMoves(0)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = db.PruneSeasonMoves(24 * time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	moves, err := db.ListMoves(ctx, "S", 10)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, "new", moves[0].EpisodeID)

	require.NoError(t, db.Optimize())
}

func TestSplitSQLStatements(t *testing.T) {
	stmts := splitSQLStatements(`
		-- comment
		CREATE TABLE a (id INTEGER);

		CREATE INDEX idx ON a(id);
		SELECT 1
	`)
	require.Len(t, stmts, 3)
	assert.Equal(t, "SELECT 1", stmts[2])
}

var _ seasons.Journal = (*Manager)(nil)
