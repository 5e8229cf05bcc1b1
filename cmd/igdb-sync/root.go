package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/logging"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/metrics"
)

// rootOptions are the global flags.
type rootOptions struct {
	logLevel    string
	logPretty   bool
	metricsAddr string

	stopMetrics context.CancelFunc
	metricsDone chan struct{}
}

// newRootCmd builds the command tree. The caller owns opts and must call
// opts.teardown once the command has returned.
func newRootCmd(opts *rootOptions) *cobra.Command {
	cfg := loadConfig()

	cmd := &cobra.Command{
		Use:           "igdb-sync",
		Short:         "igdb-sync copies the IGDB game catalogue into the my-game-list database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error).")
	cmd.PersistentFlags().BoolVar(&opts.logPretty, "log-pretty", false, "Human-readable console logs instead of JSON.")
	cmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running (e.g. :9090).")

	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newFetchCmd(opts))

	return cmd
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return err
	}
	logging.Setup(logging.Config{
		Level:  level,
		Pretty: o.logPretty,
		Output: cmd.ErrOrStderr(),
	})

	if o.metricsAddr == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	o.stopMetrics = cancel
	o.metricsDone = make(chan struct{})
	go func() {
		defer close(o.metricsDone)
		if err := metrics.Serve(ctx, o.metricsAddr); err != nil {
			log.Error().Err(err).Str("addr", o.metricsAddr).Msg("Metrics server failed")
		}
	}()
	return nil
}

// teardown stops the metrics server and waits for it. It is safe to call
// more than once and when no server was started.
func (o *rootOptions) teardown() {
	if o.stopMetrics == nil {
		return
	}
	o.stopMetrics()
	<-o.metricsDone
	o.stopMetrics = nil
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := &rootOptions{}
	defer opts.teardown()

	cmd := newRootCmd(opts)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}
