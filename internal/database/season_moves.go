package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/saltyorg/easierlife/internal/seasons"
)

// RecordMove stores one episode move from a season combination
func (db *db) RecordMove(ctx context.Context, move seasons.Move) error {
	movedAt := move.MovedAt
	if movedAt.IsZero() {
		movedAt = time.Now()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO season_moves (series_id, series_name, episode_id, episode_name, from_season_id, to_season_id, from_index, to_index, moved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, move.SeriesID, move.SeriesName, move.EpisodeID, move.EpisodeName, move.FromSeasonID, move.ToSeasonID,
		intPtrToNull(move.FromIndex), intPtrToNull(move.ToIndex), movedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record move of episode %s: %w", move.EpisodeID, err)
	}
	return nil
}

// ListMoves returns recorded moves, newest first. An empty seriesID lists every series.
func (db *db) ListMoves(ctx context.Context, seriesID string, limit int) ([]seasons.Move, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT series_id, series_name, episode_id, episode_name, from_season_id, to_season_id, from_index, to_index, moved_at
		FROM season_moves`
	args := []any{}
	if seriesID != "" {
		query += " WHERE series_id = ?"
		args = append(args, seriesID)
	}
	query += " ORDER BY moved_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list season moves: %w", err)
	}
	defer rows.Close()

	moves := []seasons.Move{}
	for rows.Next() {
		var (
			m         seasons.Move
			fromIndex sql.NullInt64
			toIndex   sql.NullInt64
		)
		if err := rows.Scan(&m.SeriesID, &m.SeriesName, &m.EpisodeID, &m.EpisodeName, &m.FromSeasonID, &m.ToSeasonID,
			&fromIndex, &toIndex, &m.MovedAt); err != nil {
			return nil, fmt.Errorf("failed to scan season move: %w", err)
		}
		m.FromIndex = nullInt64ToIntPtr(fromIndex)
		m.ToIndex = nullInt64ToIntPtr(toIndex)
		moves = append(moves, m)
	}
	return moves, rows.Err()
}
