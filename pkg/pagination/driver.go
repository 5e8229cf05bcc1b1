package pagination

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/apicalypse"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/catalog"
)

// DefaultPaceDelay is the pause between two batches.
const DefaultPaceDelay = time.Second

var igdbItemsDecodedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "igdb_items_decoded_total",
	Help: "Total number of catalogue records decoded by resource",
}, []string{"resource"})

// DriverConfig holds pagination driver configuration.
type DriverConfig struct {
	// PaceDelay is slept between batches. Defaults to DefaultPaceDelay.
	PaceDelay time.Duration

	// Stride is how far the base offset advances after a full batch.
	// Defaults to PageSize, so consecutive batches overlap by
	// (MaxParallel-1)*PageSize items. Set it to MaxParallel*PageSize to
	// fetch every item once.
	Stride int
}

// DefaultDriverConfig returns the upstream-compatible configuration.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		PaceDelay: DefaultPaceDelay,
		Stride:    PageSize,
	}
}

// Driver walks a resource batch by batch until a short batch comes back.
type Driver struct {
	batches *BatchFetcher
	config  DriverConfig
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewDriver creates a pagination driver on top of fetcher.
func NewDriver(fetcher PageFetcher, config DriverConfig) *Driver {
	if config.PaceDelay <= 0 {
		config.PaceDelay = DefaultPaceDelay
	}
	if config.Stride <= 0 {
		config.Stride = PageSize
	}

	return &Driver{
		batches: NewBatchFetcher(fetcher),
		config:  config,
		sleep:   sleepContext,
	}
}

// FetchAll returns every record matched by query, in request order. Any
// failure returns no records.
func (d *Driver) FetchAll(ctx context.Context, kind catalog.ResourceKind, query string) ([]catalog.Object, error) {
	var all []catalog.Object
	err := d.Each(ctx, kind, query, func(objects []catalog.Object) error {
		all = append(all, objects...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []catalog.Object{}
	}
	return all, nil
}

// Each calls fn once per batch with the batch's decoded records. It stops at
// the first batch whose item count is below MaxParallel*PageSize, at the
// first error, or when fn returns an error. Batches whose item count is an
// exact multiple of that size are followed by one more (empty) batch.
func (d *Driver) Each(ctx context.Context, kind catalog.ResourceKind, query string, fn func([]catalog.Object) error) error {
	if strings.TrimSpace(query) == "" {
		return &QueryError{Kind: kind, Err: ErrEmptyQuery}
	}
	if !kind.Valid() {
		return &catalog.UnknownResourceKindError{Kind: kind}
	}

	query += apicalypse.Limit(PageSize) + apicalypse.Sort("id")
	start := time.Now()
	total := 0

	for offset, batch := 0, 1; ; offset, batch = offset+d.config.Stride, batch+1 {
		pages, err := d.batches.FetchBatch(ctx, kind, query, offset)
		if err != nil {
			return err
		}

		var objects []catalog.Object
		for _, page := range pages {
			decoded, err := catalog.DecodePage(kind, page.Body)
			if err != nil {
				return err
			}
			objects = append(objects, decoded...)
		}

		count := len(objects)
		total += count
		igdbItemsDecodedTotal.WithLabelValues(kind.String()).Add(float64(count))

		log.Info().
			Str("resource", kind.String()).
			Int("batch", batch).
			Int("offset", offset).
			Int("items", count).
			Msg("Fetched batch")

		if err := fn(objects); err != nil {
			return err
		}

		if count < MaxParallel*PageSize {
			break
		}

		if err := d.sleep(ctx, d.config.PaceDelay); err != nil {
			return err
		}
	}

	log.Info().
		Str("resource", kind.String()).
		Int("items", total).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return nil
}

// sleepContext pauses for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
