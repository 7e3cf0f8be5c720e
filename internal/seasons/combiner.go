// Package seasons merges the seasons of a television series into one.
package seasons

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/easierlife/internal/library"
)

// Move describes one episode relinked by a combination
type Move struct {
	SeriesID     string    `json:"SeriesId"`
	SeriesName   string    `json:"SeriesName"`
	EpisodeID    string    `json:"EpisodeId"`
	EpisodeName  string    `json:"EpisodeName"`
	FromSeasonID string    `json:"FromSeasonId"`
	ToSeasonID   string    `json:"ToSeasonId"`
	FromIndex    *int      `json:"FromIndex"`
	ToIndex      *int      `json:"ToIndex"`
	MovedAt      time.Time `json:"MovedAt"`
}

// Journal stores episode moves for auditing
type Journal interface {
	RecordMove(ctx context.Context, move Move) error
}

// Result summarizes a single series combination
type Result struct {
	SeriesID       string   `json:"SeriesId"`
	TargetSeasonID string   `json:"TargetSeasonId"`
	SeasonsMerged  int      `json:"SeasonsMerged"`
	EpisodesMoved  int      `json:"EpisodesMoved"`
	EmptiedSeasons []string `json:"EmptiedSeasons"`
}

// Combiner relinks every episode of a series into a single season
type Combiner struct {
	repo    library.Repository
	journal Journal
	now     func() time.Time
}

// NewCombiner creates a combiner. journal may be nil.
func NewCombiner(repo library.Repository, journal Journal) *Combiner {
	return &Combiner{repo: repo, journal: journal, now: time.Now}
}

// compareSeasons orders seasons by index number, absent counting as 0, then by id
func compareSeasons(a, b *library.Item) int {
	if c := cmp.Compare(a.Index(), b.Index()); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortSeasons returns the seasons in combination order
func SortSeasons(seasons []*library.Item) []*library.Item {
	sorted := slices.Clone(seasons)
	slices.SortStableFunc(sorted, compareSeasons)
	return sorted
}

// TargetSeason picks the season that receives every episode: index 1 when present, else the first in order
func TargetSeason(sorted []*library.Item) *library.Item {
	for _, season := range sorted {
		if season.IndexNumber != nil && *season.IndexNumber == 1 {
			return season
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	return sorted[0]
}

// CombineSeasons moves every episode of the series into its target season and renumbers them
// so that earlier seasons keep coming first. Emptied seasons are left in place.
func (c *Combiner) CombineSeasons(ctx context.Context, series *library.Item) (Result, error) {
	result := Result{SeriesID: series.ID, EmptiedSeasons: []string{}}

	seasons, err := c.repo.Seasons(ctx, series)
	if err != nil {
		return result, fmt.Errorf("failed to list seasons of %s: %w", series.Name, err)
	}
	if len(seasons) <= 1 {
		log.Debug().Str("series", series.Name).Int("seasons", len(seasons)).Msg("Nothing to combine")
		return result, nil
	}

	sorted := SortSeasons(seasons)
	target := TargetSeason(sorted)
	result.TargetSeasonID = target.ID

	// Episode lists are read before any change so offsets come from the original layout
	episodes := make(map[string][]*library.Item, len(sorted))
	for _, season := range sorted {
		eps, err := c.repo.Episodes(ctx, season)
		if err != nil {
			return result, fmt.Errorf("failed to list episodes of %s season %s: %w", series.Name, season.IndexString(), err)
		}
		episodes[season.ID] = eps
	}

	log.Info().
		Str("series", series.Name).
		Int("seasons", len(sorted)).
		Str("target_season", target.IndexString()).
		Msg("Combining seasons")

	offset := 0
	for _, season := range sorted {
		eps := episodes[season.ID]
		if season.ID == target.ID {
			if offset > 0 {
				if err := c.moveEpisodes(ctx, series, season, target, eps, offset); err != nil {
					return result, err
				}
			}
		} else {
			if err := c.moveEpisodes(ctx, series, season, target, eps, offset); err != nil {
				return result, err
			}
			result.SeasonsMerged++
			result.EpisodesMoved += len(eps)
			result.EmptiedSeasons = append(result.EmptiedSeasons, season.ID)
			log.Info().
				Str("series", series.Name).
				Str("season", season.Name).
				Str("season_id", season.ID).
				Msg("Season is now empty and can be removed manually")
		}
		offset += len(eps)
	}

	if err := c.repo.UpdateItem(ctx, target, library.ReasonMetadataEdit); err != nil {
		return result, fmt.Errorf("failed to update target season of %s: %w", series.Name, err)
	}

	log.Info().
		Str("series", series.Name).
		Int("seasons_merged", result.SeasonsMerged).
		Int("episodes_moved", result.EpisodesMoved).
		Msg("Combined seasons")
	return result, nil
}

// moveEpisodes relinks the episodes of one season to the target and shifts their index by offset
func (c *Combiner) moveEpisodes(ctx context.Context, series, from, target *library.Item, eps []*library.Item, offset int) error {
	for _, ep := range eps {
		moved := ep.Clone()
		moved.SeasonID = target.ID
		moved.ParentID = target.ID
		if moved.IndexNumber != nil {
			*moved.IndexNumber += offset
		}

		if err := c.repo.UpdateItem(ctx, moved, library.ReasonMetadataEdit); err != nil {
			return fmt.Errorf("failed to move episode %s of %s: %w", ep.Name, series.Name, err)
		}

		log.Debug().
			Str("series", series.Name).
			Str("episode", ep.Name).
			Str("from_season", from.IndexString()).
			Str("old_index", ep.IndexString()).
			Str("new_index", moved.IndexString()).
			Msg("Moved episode")

		if c.journal != nil {
			move := Move{
				SeriesID:     series.ID,
				SeriesName:   series.Name,
				EpisodeID:    ep.ID,
				EpisodeName:  ep.Name,
				FromSeasonID: from.ID,
				ToSeasonID:   target.ID,
				FromIndex:    ep.IndexNumber,
				ToIndex:      moved.IndexNumber,
				MovedAt:      c.now(),
			}
			if err := c.journal.RecordMove(ctx, move); err != nil {
				log.Warn().Err(err).Str("episode", ep.Name).Msg("Failed to journal episode move")
			}
		}
	}
	return nil
}

// CombineSeasonsForLibrary combines every series in a library, one series at a time.
// An unknown library is not an error; a failing series is logged and skipped.
func (c *Combiner) CombineSeasonsForLibrary(ctx context.Context, libraryID string) (result library.BatchResult, err error) {
	result.LibraryID = libraryID
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	root, err := c.repo.GetItem(ctx, libraryID)
	if errors.Is(err, library.ErrItemNotFound) {
		log.Warn().Str("library", libraryID).Msg("Library not found, nothing to combine")
		return result, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			result.Cancelled = true
			return result, nil
		}
		return result, fmt.Errorf("failed to resolve library %s: %w", libraryID, err)
	}
	result.Found = true

	children, err := c.repo.RecursiveChildren(ctx, root.ID)
	if err != nil {
		if ctx.Err() != nil {
			result.Cancelled = true
			return result, nil
		}
		return result, fmt.Errorf("failed to list items of library %s: %w", root.Name, err)
	}

	var series []*library.Item
	for _, item := range children {
		if item.Kind == library.KindSeries {
			series = append(series, item)
		}
	}
	result.Total = len(series)

	log.Info().Str("library", root.Name).Int("series", len(series)).Msg("Starting library season combination")

	for _, s := range series {
		if ctx.Err() != nil {
			result.Cancelled = true
			log.Info().
				Str("library", root.Name).
				Int("processed", result.Processed).
				Int("total", result.Total).
				Msg("Library season combination cancelled")
			return result, nil
		}

		result.Processed++
		if _, err := c.CombineSeasons(ctx, s); err != nil {
			result.Failed++
			log.Error().Err(err).Str("series", s.Name).Str("id", s.ID).Msg("Failed to combine seasons")
		}
	}

	log.Info().
		Str("library", root.Name).
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Dur("duration", time.Since(start)).
		Msg("Library season combination completed")
	return result, nil
}
