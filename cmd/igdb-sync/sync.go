package main

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/MyGameListPlaceholder/my-game-list-backend/internal/ingest"
	"github.com/MyGameListPlaceholder/my-game-list-backend/internal/store"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/client"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/logging"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/pagination"
)

type syncOptions struct {
	resources []string
	where     string
	stride    int
	lockTTL   time.Duration
}

func newSyncCmd(root *rootOptions) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync [--resources genres,platforms,companies,games] [--where <condition>]",
		Short: "Fetches catalogue resources from IGDB and upserts them into PostgreSQL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.resources, "resources", nil, "Resources to ingest (default: all, in dependency order).")
	cmd.Flags().StringVar(&opts.where, "where", "", "Filter condition applied to every resource, e.g. \"updated_at > 1700000000\".")
	cmd.Flags().IntVar(&opts.stride, "stride", pagination.MaxParallel*pagination.PageSize,
		fmt.Sprintf("Offset advance between batches; %d reproduces the overlapping upstream walk.", pagination.PageSize))
	cmd.Flags().DurationVar(&opts.lockTTL, "lock-ttl", ingest.DefaultLockTTL, "Lifetime of the cross-process run lock (Redis only).")

	return cmd
}

func runSync(cmd *cobra.Command, opts *syncOptions) error {
	ctx := cmd.Context()
	cfg := loadConfig()
	logger := logging.NewLogger(logging.ComponentCLI)

	kinds, err := parseResources(opts.resources)
	if err != nil {
		return err
	}

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to Redis: %w", err)
		}
	}

	clientCfg, err := cfg.clientConfig(redisClient)
	if err != nil {
		return err
	}
	clientCfg.Pagination.Stride = opts.stride

	igdb, err := client.New(ctx, clientCfg)
	if err != nil {
		return err
	}
	defer igdb.Close()

	db, err := store.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	pg := store.NewPostgres(db, logging.NewLogger(logging.ComponentStore))
	if err := pg.EnsureSchema(ctx); err != nil {
		return err
	}

	var locker ingest.Locker = ingest.NopLocker{}
	if redisClient != nil {
		locker = ingest.NewRedisLocker(redisClient, opts.lockTTL)
	}

	svc := ingest.NewService(igdb, pg, locker, ingest.Config{
		Kinds:   kinds,
		Where:   opts.where,
		LockTTL: opts.lockTTL,
	}, logging.NewLogger(logging.ComponentIngest))

	run, runErr := svc.Run(ctx)
	if run != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			logger.Warn().Err(err).Msg("Failed to print run summary")
		}
	}
	return runErr
}
