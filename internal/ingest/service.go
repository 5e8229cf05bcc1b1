package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/apicalypse"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/catalog"
)

// DefaultLockTTL bounds how long a crashed run keeps others out.
const DefaultLockTTL = 2 * time.Hour

var (
	igdbIngestRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "igdb_ingest_runs_total",
		Help: "Total ingestion runs by final status",
	}, []string{"status"})

	igdbIngestUpsertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "igdb_ingest_upserts_total",
		Help: "Total catalogue records written to the store by resource",
	}, []string{"resource"})
)

// Fetcher streams catalogue records batch by batch. *client.Client
// implements it.
type Fetcher interface {
	Each(ctx context.Context, kind catalog.ResourceKind, query string, fn func([]catalog.Object) error) error
}

// Store persists catalogue records.
type Store interface {
	Upsert(ctx context.Context, objects []catalog.Object) (int, error)
}

// Config holds ingestion configuration.
type Config struct {
	// Kinds are ingested in order. Defaults to catalog.AllResourceKinds.
	Kinds []catalog.ResourceKind

	// Where is an optional filter condition applied to every kind.
	Where string

	// LockTTL is the lifetime of the run lock.
	LockTTL time.Duration
}

// DefaultConfig returns a configuration ingesting every kind.
func DefaultConfig() Config {
	return Config{
		Kinds:   catalog.AllResourceKinds(),
		LockTTL: DefaultLockTTL,
	}
}

// Service runs ingestion passes.
type Service struct {
	fetcher Fetcher
	store   Store
	locker  Locker
	cfg     Config
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates an ingestion service. A nil locker means NopLocker.
func NewService(fetcher Fetcher, store Store, locker Locker, cfg Config, logger zerolog.Logger) *Service {
	if locker == nil {
		locker = NopLocker{}
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = catalog.AllResourceKinds()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}

	return &Service{
		fetcher: fetcher,
		store:   store,
		locker:  locker,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Query returns the request body selecting kind.
func (s *Service) Query(kind catalog.ResourceKind) string {
	return apicalypse.New().
		Fields(catalog.DefaultFields(kind)...).
		Where(s.cfg.Where).
		String()
}

// Run ingests every configured kind. A failure of one kind aborts the run;
// the returned Run then carries status FAILED and the error. When another
// run holds the lock, Run returns ErrRunInProgress and no Run.
func (s *Service) Run(ctx context.Context) (run *Run, err error) {
	for _, kind := range s.cfg.Kinds {
		if !kind.Valid() {
			return nil, &catalog.UnknownResourceKindError{Kind: kind}
		}
	}

	release, err := s.locker.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Warn().Msg("Ingestion skipped: another run holds the lock")
		}
		return nil, err
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			s.logger.Warn().Err(relErr).Msg("Failed to release run lock")
		}
	}()

	started := s.now()
	run = &Run{
		ID:        started.UTC().Format("20060102T150405.000Z"),
		StartedAt: started,
		Status:    StatusRunning,
		Kinds:     append([]catalog.ResourceKind(nil), s.cfg.Kinds...),
		Counts:    make(map[catalog.ResourceKind]Counts, len(s.cfg.Kinds)),
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Interface("kinds", run.Kinds).
		Str("where", s.cfg.Where).
		Msg("Ingestion run started")

	defer func() {
		finished := s.now()
		run.FinishedAt = &finished
		if err != nil {
			run.Status = StatusFailed
			run.Error = err.Error()
			s.logger.Error().
				Err(err).
				Str("run_id", run.ID).
				Dur("duration", run.Duration()).
				Msg("Ingestion run failed")
		} else {
			run.Status = StatusCompleted
			s.logger.Info().
				Str("run_id", run.ID).
				Int("items", run.Total()).
				Dur("duration", run.Duration()).
				Msg("Ingestion run completed")
		}
		igdbIngestRunsTotal.WithLabelValues(run.Status).Inc()
	}()

	for _, kind := range run.Kinds {
		if err := s.ingestKind(ctx, run, kind); err != nil {
			return run, fmt.Errorf("ingest %s: %w", kind, err)
		}
	}

	return run, nil
}

func (s *Service) ingestKind(ctx context.Context, run *Run, kind catalog.ResourceKind) error {
	start := s.now()
	counts := run.Counts[kind]
	defer func() { run.Counts[kind] = counts }()

	err := s.fetcher.Each(ctx, kind, s.Query(kind), func(objects []catalog.Object) error {
		counts.Batches++
		counts.Fetched += len(objects)
		if len(objects) == 0 {
			return nil
		}

		n, err := s.store.Upsert(ctx, objects)
		if err != nil {
			return fmt.Errorf("upsert: %w", err)
		}
		counts.Upserted += n
		igdbIngestUpsertsTotal.WithLabelValues(kind.String()).Add(float64(n))
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("resource", kind.String()).
		Int("batches", counts.Batches).
		Int("items", counts.Fetched).
		Int("upserted", counts.Upserted).
		Dur("duration", s.now().Sub(start)).
		Msg("Resource ingested")
	return nil
}
