package database

import (
	"fmt"
	"time"
)

// Optimize runs SQLite's PRAGMA optimize to refresh planner stats.
func (db *db) Optimize() error {
	if db == nil || db.conn == nil {
		return fmt.Errorf("database not initialized")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.exec("PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to optimize database: %w", err)
	}

	return nil
}

// PruneSeasonMoves deletes journal entries older than the retention window and returns how many were removed.
// A non-positive retention keeps everything.
func (db *db) PruneSeasonMoves(retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	res, err := db.exec("DELETE FROM season_moves WHERE moved_at < ?", time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to prune season moves: %w", err)
	}
	return res.RowsAffected()
}
