package pagination

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/apicalypse"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/catalog"
)

const (
	// MaxParallel is the number of calls issued per batch.
	MaxParallel = 4

	// PageSize is the item limit of a single call.
	PageSize = 500
)

var igdbBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "igdb_batches_total",
	Help: "Total number of parallel request batches issued by resource",
}, []string{"resource"})

// PageFetcher performs a single authenticated call. The client implements it.
type PageFetcher interface {
	// FetchPage posts body to the endpoint of kind and returns the raw
	// response body of a 2xx answer.
	FetchPage(ctx context.Context, kind catalog.ResourceKind, body string) ([]byte, error)
}

// RawPage is the untouched body of one call.
type RawPage struct {
	Offset int
	Body   []byte
}

// pageResult is what a worker reports for one offset.
type pageResult struct {
	slot int
	page RawPage
	err  error
}

// BatchFetcher issues MaxParallel calls at consecutive offsets and joins them.
type BatchFetcher struct {
	fetcher PageFetcher
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(fetcher PageFetcher) *BatchFetcher {
	return &BatchFetcher{fetcher: fetcher}
}

// FetchBatch fetches offsets offset, offset+PageSize, ... concurrently, each
// with body query + "offset N;sort id;". It waits for every call. If any call
// fails no pages are returned and the error is a *TransportError for the
// lowest failing offset. Pages come back in offset order.
func (bf *BatchFetcher) FetchBatch(ctx context.Context, kind catalog.ResourceKind, query string, offset int) ([]RawPage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &QueryError{Kind: kind, Err: ErrEmptyQuery}
	}
	if !kind.Valid() {
		return nil, &catalog.UnknownResourceKindError{Kind: kind}
	}

	start := time.Now()
	igdbBatchesTotal.WithLabelValues(kind.String()).Inc()

	offsets := make(chan int, MaxParallel)
	results := make(chan pageResult, MaxParallel)
	for i := 0; i < MaxParallel; i++ {
		offsets <- i
	}
	close(offsets)

	var wg sync.WaitGroup
	for i := 0; i < MaxParallel; i++ {
		wg.Add(1)
		go bf.worker(ctx, kind, query, offset, offsets, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	pages := make([]RawPage, MaxParallel)
	errs := make([]error, MaxParallel)
	for r := range results {
		pages[r.slot] = r.page
		errs[r.slot] = r.err
	}

	for slot, err := range errs {
		if err != nil {
			failed := offset + slot*PageSize
			log.Warn().
				Err(err).
				Str("resource", kind.String()).
				Int("offset", failed).
				Msg("Batch failed")
			return nil, newTransportError(kind, failed, err)
		}
	}

	log.Debug().
		Str("resource", kind.String()).
		Int("offset", offset).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return pages, nil
}

// worker fetches slots from the queue until it is drained.
func (bf *BatchFetcher) worker(ctx context.Context, kind catalog.ResourceKind, query string, base int, slots <-chan int, results chan<- pageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for slot := range slots {
		offset := base + slot*PageSize
		body := query + apicalypse.Offset(offset) + apicalypse.Sort("id")

		data, err := bf.fetcher.FetchPage(ctx, kind, body)
		if err != nil {
			log.Debug().
				Err(err).
				Int("worker_id", workerID).
				Str("resource", kind.String()).
				Int("offset", offset).
				Msg("Call failed")
		}

		results <- pageResult{
			slot: slot,
			page: RawPage{Offset: offset, Body: data},
			err:  err,
		}
	}
}
