package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saltyorg/easierlife/internal/config"
	"github.com/saltyorg/easierlife/internal/database"
	"github.com/saltyorg/easierlife/internal/jellyfin"
	"github.com/saltyorg/easierlife/internal/library"
	"github.com/saltyorg/easierlife/internal/metadata"
	"github.com/saltyorg/easierlife/internal/seasons"
)

// oneShot runs fn with an opened database and Jellyfin client, cancelled on SIGINT/SIGTERM
func oneShot(fn func(ctx context.Context, db *database.Manager, client *jellyfin.Client) error) error {
	if err := applyEnv(); err != nil {
		return err
	}
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(ctx, db, jellyfin.New(jellyfinURL, jellyfinAPIKey))
}

func normalizeGUID(name, raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("--%s is not a valid GUID: %s", name, raw)
	}
	return library.NormalizeID(id.String()), nil
}

func logBatch(operation string, result library.BatchResult) {
	if !result.Found {
		log.Warn().Str("library_id", result.LibraryID).Msg("Library not found")
		return
	}
	log.Info().
		Str("operation", operation).
		Str("library_id", result.LibraryID).
		Int("total", result.Total).
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Bool("cancelled", result.Cancelled).
		Dur("duration", result.Duration).
		Msg("Batch finished")
}

func replaceMetadataCmd() *cobra.Command {
	var libraryID string
	var replaceImages bool

	cmd := &cobra.Command{
		Use:          "replace-metadata",
		Short:        "Replace all metadata for every item in a library",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := normalizeGUID("library", libraryID)
			if err != nil {
				return err
			}
			return oneShot(func(ctx context.Context, db *database.Manager, client *jellyfin.Client) error {
				plugin := config.NewLoader(db).Plugin()
				if !plugin.ReplaceAllMetadata {
					return errors.New("metadata replacement is disabled in plugin configuration")
				}
				replacer := metadata.NewReplacer(client, client, nil)
				result, err := replacer.ReplaceMetadataForLibrary(ctx, id, replaceImages && plugin.ReplaceImages)
				if err != nil {
					return err
				}
				logBatch("replace-metadata", result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&libraryID, "library", "", "Library id")
	cmd.Flags().BoolVar(&replaceImages, "replace-images", true, "Also replace images when the configuration allows it")
	_ = cmd.MarkFlagRequired("library")
	return cmd
}

func combineSeasonsCmd() *cobra.Command {
	var seriesID, libraryID string

	cmd := &cobra.Command{
		Use:          "combine-seasons",
		Short:        "Merge every season of a series, or of every series in a library, into one season",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (seriesID == "") == (libraryID == "") {
				return errors.New("exactly one of --series or --library is required")
			}
			return oneShot(func(ctx context.Context, db *database.Manager, client *jellyfin.Client) error {
				if !config.NewLoader(db).Plugin().CombineAllSeasons {
					return errors.New("season combination is disabled in plugin configuration")
				}
				combiner := seasons.NewCombiner(client, db)

				if libraryID != "" {
					id, err := normalizeGUID("library", libraryID)
					if err != nil {
						return err
					}
					result, err := combiner.CombineSeasonsForLibrary(ctx, id)
					if err != nil {
						return err
					}
					logBatch("combine-seasons", result)
					return nil
				}

				id, err := normalizeGUID("series", seriesID)
				if err != nil {
					return err
				}
				series, err := client.GetItem(ctx, id)
				if err != nil {
					return err
				}
				if series.Kind != library.KindSeries {
					return fmt.Errorf("item %s is a %s, not a series", id, series.Kind)
				}
				res, err := combiner.CombineSeasons(ctx, series)
				if err != nil {
					return err
				}
				log.Info().
					Str("series", series.Name).
					Int("seasons_merged", res.SeasonsMerged).
					Int("episodes_moved", res.EpisodesMoved).
					Msg("Seasons combined")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&seriesID, "series", "", "Series id")
	cmd.Flags().StringVar(&libraryID, "library", "", "Library id")
	return cmd
}

func librariesCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "libraries",
		Short:        "List Jellyfin libraries",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return oneShot(func(ctx context.Context, _ *database.Manager, client *jellyfin.Client) error {
				libs, err := client.Libraries(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tTYPE")
				for _, lib := range libs {
					fmt.Fprintf(w, "%s\t%s\t%s\n", library.NormalizeID(lib.ID), lib.Name, lib.Type)
				}
				return w.Flush()
			})
		},
	}
}
