// Package scheduler runs library-wide passes and database maintenance on cron schedules
// stored in settings.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/easierlife/internal/config"
	"github.com/saltyorg/easierlife/internal/library"
)

// Job names a scheduled task
type Job string

const (
	JobReplaceMetadata Job = "replace-metadata"
	JobCombineSeasons  Job = "combine-seasons"
	JobMaintenance     Job = "maintenance"
)

// scheduleKeys maps each job to the setting holding its cron expression
var scheduleKeys = map[Job]string{
	JobReplaceMetadata: config.KeyScheduleReplaceMetadata,
	JobCombineSeasons:  config.KeyScheduleCombineSeasons,
	JobMaintenance:     config.KeyScheduleMaintenance,
}

// Replacer runs a metadata replacement over a library
type Replacer interface {
	ReplaceMetadataForLibrary(ctx context.Context, libraryID string, replaceImages bool) (library.BatchResult, error)
}

// Combiner merges seasons for every series in a library
type Combiner interface {
	CombineSeasonsForLibrary(ctx context.Context, libraryID string) (library.BatchResult, error)
}

// Maintainer performs database upkeep
type Maintainer interface {
	Optimize() error
	PruneSeasonMoves(retention time.Duration) (int64, error)
}

// Scheduler owns a cron runner whose entries follow the schedule settings
type Scheduler struct {
	loader     *config.Loader
	libraries  library.LibraryLister
	replacer   Replacer
	combiner   Combiner
	maintainer Maintainer

	cron    *cron.Cron
	mu      sync.Mutex
	entries map[Job]cron.EntryID
	ctx     context.Context
}

// New creates a scheduler. maintainer may be nil when no database is attached.
func New(settings config.SettingsGetter, libraries library.LibraryLister, replacer Replacer, combiner Combiner, maintainer Maintainer) *Scheduler {
	return &Scheduler{
		loader:     config.NewLoader(settings),
		libraries:  libraries,
		replacer:   replacer,
		combiner:   combiner,
		maintainer: maintainer,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{}))),
		entries:    make(map[Job]cron.EntryID),
		ctx:        context.Background(),
	}
}

// Name returns the handler name
func (s *Scheduler) Name() string {
	return "scheduler"
}

// reload replaces the cron entries with the stored schedules. An empty expression disables a job.
// Invalid expressions are reported together; valid ones are still scheduled.
func (s *Scheduler) reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for job, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, job)
	}

	var errs []error
	for _, job := range []Job{JobReplaceMetadata, JobCombineSeasons, JobMaintenance} {
		spec := s.loader.String(scheduleKeys[job], "")
		if spec == "" {
			continue
		}

		id, err := s.cron.AddFunc(spec, func() {
			if err := s.RunJob(s.context(), job); err != nil {
				log.Error().Err(err).Str("job", string(job)).Msg("Scheduled job failed")
			}
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid schedule %q for %s: %w", spec, job, err))
			continue
		}
		s.entries[job] = id
		log.Info().Str("job", string(job)).Str("schedule", spec).Msg("Job scheduled")
	}
	return errors.Join(errs...)
}

// NextRun returns when a job fires next. ok is false when the job is not scheduled.
func (s *Scheduler) NextRun(job Job) (next time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.entries[job]
	if !exists {
		return time.Time{}, false
	}
	entry := s.cron.Entry(id)
	return entry.Next, !entry.Next.IsZero()
}

// Run starts the cron runner and blocks until ctx is cancelled. Running jobs are waited for.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.reload(); err != nil {
		log.Warn().Err(err).Msg("Some schedules could not be loaded")
	}

	s.cron.Start()
	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	log.Debug().Msg("Scheduler stopped")
	return nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// RunJob executes a job immediately
func (s *Scheduler) RunJob(ctx context.Context, job Job) error {
	switch job {
	case JobReplaceMetadata:
		plugin := s.loader.Plugin()
		if !plugin.ReplaceAllMetadata {
			log.Debug().Str("job", string(job)).Msg("Metadata replacement disabled, skipping")
			return nil
		}
		return s.eachLibrary(ctx, job, func(ctx context.Context, id string) (library.BatchResult, error) {
			return s.replacer.ReplaceMetadataForLibrary(ctx, id, plugin.ReplaceImages)
		})
	case JobCombineSeasons:
		if !s.loader.Plugin().CombineAllSeasons {
			log.Debug().Str("job", string(job)).Msg("Season combination disabled, skipping")
			return nil
		}
		return s.eachLibrary(ctx, job, s.combiner.CombineSeasonsForLibrary)
	case JobMaintenance:
		return s.maintenance()
	default:
		return fmt.Errorf("unknown job %q", job)
	}
}

// targetLibraries returns the configured library ids, or every library when none are configured
func (s *Scheduler) targetLibraries(ctx context.Context) ([]string, error) {
	ids := s.loader.StringSlice(config.KeyScheduleLibraries, nil)
	if len(ids) > 0 {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			out = append(out, library.NormalizeID(id))
		}
		return out, nil
	}

	libs, err := s.libraries.Libraries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}
	out := make([]string, 0, len(libs))
	for _, lib := range libs {
		out = append(out, library.NormalizeID(lib.ID))
	}
	return out, nil
}

// eachLibrary runs a batch over every target library, continuing past failures
func (s *Scheduler) eachLibrary(ctx context.Context, job Job, run func(context.Context, string) (library.BatchResult, error)) error {
	ids, err := s.targetLibraries(ctx)
	if err != nil {
		return err
	}

	log.Info().Str("job", string(job)).Int("libraries", len(ids)).Msg("Starting scheduled pass")

	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			log.Info().Str("job", string(job)).Msg("Scheduled pass cancelled")
			return nil
		}

		result, err := run(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("library %s: %w", id, err))
			continue
		}
		log.Info().
			Str("job", string(job)).
			Str("library_id", id).
			Int("processed", result.Processed).
			Int("failed", result.Failed).
			Dur("duration", result.Duration).
			Msg("Scheduled pass finished library")
	}
	return errors.Join(errs...)
}

func (s *Scheduler) maintenance() error {
	if s.maintainer == nil {
		return nil
	}
	if err := s.maintainer.Optimize(); err != nil {
		return err
	}

	retention := s.loader.DurationDays(config.KeyJournalRetentionDays, config.DefaultJournalRetention)
	removed, err := s.maintainer.PruneSeasonMoves(retention)
	if err != nil {
		return err
	}
	log.Info().Int64("pruned_moves", removed).Msg("Database maintenance complete")
	return nil
}

// cronLogger routes cron's own messages to zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
