// Package metadata forces full metadata and image replacement on media server items.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/easierlife/internal/library"
)

// Recorder receives the outcome of every replacement attempt
type Recorder interface {
	RecordItemProcessed(item *library.Item, success bool)
}

// RefreshError is returned when the media server fails to refresh an item
type RefreshError struct {
	ItemID   string
	ItemName string
	Err      error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("failed to replace metadata for %s (%s): %v", e.ItemName, e.ItemID, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Replacer issues full refreshes through the media server
type Replacer struct {
	repo      library.Repository
	refresher library.Refresher
	recorder  Recorder
}

// NewReplacer creates a replacer. recorder may be nil.
func NewReplacer(repo library.Repository, refresher library.Refresher, recorder Recorder) *Replacer {
	return &Replacer{
		repo:      repo,
		refresher: refresher,
		recorder:  recorder,
	}
}

// RefreshOptionsFor builds the options used for every replacement
func RefreshOptionsFor(replaceImages bool) library.RefreshOptions {
	opts := library.RefreshOptions{
		ReplaceAllMetadata: true,
		ReplaceImages:      replaceImages,
		MetadataMode:       library.RefreshModeFullRefresh,
		ImageMode:          library.RefreshModeValidationOnly,
	}
	if replaceImages {
		opts.ImageMode = library.RefreshModeFullRefresh
	}
	return opts
}

// ReplaceMetadata refreshes one item, discarding its existing metadata.
// The outcome is always reported to the recorder.
// A panicking refresh is recorded as a failure before the panic continues.
func (r *Replacer) ReplaceMetadata(ctx context.Context, item *library.Item, replaceImages bool) error {
	succeeded := false
	defer func() {
		if r.recorder != nil {
			r.recorder.RecordItemProcessed(item, succeeded)
		}
	}()

	log.Debug().
		Str("item", item.Name).
		Str("id", item.ID).
		Str("type", string(item.Kind)).
		Bool("replace_images", replaceImages).
		Msg("Replacing metadata")

	if refreshErr := r.refresher.RefreshMetadata(ctx, item, RefreshOptionsFor(replaceImages)); refreshErr != nil {
		log.Error().Err(refreshErr).Str("item", item.Name).Str("id", item.ID).Msg("Metadata replacement failed")
		return &RefreshError{ItemID: item.ID, ItemName: item.Name, Err: refreshErr}
	}

	succeeded = true
	log.Info().Str("item", item.Name).Str("id", item.ID).Msg("Replaced metadata")
	return nil
}

// ReplaceMetadataForLibrary replaces metadata for every descendant of a library, one item at a time.
// An unknown library is not an error. Cancellation stops the pass early and is reported in the result.
func (r *Replacer) ReplaceMetadataForLibrary(ctx context.Context, libraryID string, replaceImages bool) (result library.BatchResult, err error) {
	result.LibraryID = libraryID
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	root, err := r.repo.GetItem(ctx, libraryID)
	if errors.Is(err, library.ErrItemNotFound) {
		log.Warn().Str("library", libraryID).Msg("Library not found, nothing to replace")
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

	items, err := r.repo.RecursiveChildren(ctx, root.ID)
	if err != nil {
		if ctx.Err() != nil {
			result.Cancelled = true
			return result, nil
		}
		return result, fmt.Errorf("failed to list items of library %s: %w", root.Name, err)
	}
	result.Total = len(items)

	log.Info().
		Str("library", root.Name).
		Int("items", len(items)).
		Bool("replace_images", replaceImages).
		Msg("Starting library metadata replacement")

	for _, item := range items {
		if ctx.Err() != nil {
			result.Cancelled = true
			log.Info().
				Str("library", root.Name).
				Int("processed", result.Processed).
				Int("total", result.Total).
				Msg("Library metadata replacement cancelled")
			return result, nil
		}

		result.Processed++
		if r.ReplaceMetadata(ctx, item, replaceImages) != nil {
			result.Failed++
		}
	}

	log.Info().
		Str("library", root.Name).
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Dur("duration", time.Since(start)).
		Msg("Library metadata replacement completed")
	return result, nil
}
