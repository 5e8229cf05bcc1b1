package main

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/apicalypse"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/catalog"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/client"
)

type fetchOptions struct {
	query string
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:       "fetch <genres|platforms|companies|games> [--query <apicalypse>]",
		Short:     "Fetches one resource and prints the decoded records as JSON lines.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"genres", "platforms", "companies", "games"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.query, "query", "", "Query body without paging clauses (default: the fields the decoder accepts).")

	return cmd
}

func runFetch(cmd *cobra.Command, resource string, opts *fetchOptions) error {
	ctx := cmd.Context()
	cfg := loadConfig()

	kind, err := catalog.ParseResourceKind(strings.ToLower(resource))
	if err != nil {
		return err
	}

	query := opts.query
	if query == "" {
		query = apicalypse.New().Fields(catalog.DefaultFields(kind)...).String()
	}

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	clientCfg, err := cfg.clientConfig(redisClient)
	if err != nil {
		return err
	}

	igdb, err := client.New(ctx, clientCfg)
	if err != nil {
		return err
	}
	defer igdb.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	return igdb.Each(ctx, kind, query, func(objects []catalog.Object) error {
		for _, o := range objects {
			if err := enc.Encode(o); err != nil {
				return err
			}
		}
		return nil
	})
}
