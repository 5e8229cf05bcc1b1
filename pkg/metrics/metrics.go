// Package metrics exposes the Prometheus metrics of the IGDB client and the
// ingestion service. The metrics themselves are defined with promauto in
// the packages that record them; this package serves them over HTTP.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the IGDB client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Path is where Handler is mounted by Serve.
const Path = "/metrics"

// shutdownTimeout bounds the graceful stop of the metrics server.
const shutdownTimeout = 5 * time.Second

// Handler returns the scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes Handler on addr until ctx is done. It returns nil after a
// clean shutdown.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("path", Path).Msg("Metrics server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info().Msg("Metrics server stopped")
		return nil
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - igdb_requests_total{resource, status} (Counter): Calls by resource and HTTP status
//   - igdb_request_duration_seconds{resource} (Histogram): Call duration by resource
//   - igdb_errors_total{class} (Counter): Failed calls by class (client, server, rate_limit, network)
//
// Token Metrics (pkg/auth):
//   - igdb_token_requests_total{result} (Counter): Token requests by result (ok, rejected, malformed, network_error)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - igdb_rate_limit_waits_total{scope} (Counter): Calls delayed by the local or shared limiter
//   - igdb_rate_limit_wait_seconds{scope} (Histogram): Time spent waiting
//   - igdb_rate_limit_window_requests (Gauge): Calls counted in the current shared window
//
// Pagination Metrics (pkg/pagination):
//   - igdb_batches_total{resource} (Counter): Parallel batches issued
//   - igdb_items_decoded_total{resource} (Counter): Records decoded
//
// Ingestion Metrics (internal/ingest):
//   - igdb_ingest_runs_total{status} (Counter): Runs by final status
//   - igdb_ingest_upserts_total{resource} (Counter): Records written to the store
//
// Example Prometheus Queries:
//
//   # Call Error Rate
//   sum(rate(igdb_errors_total[5m])) / sum(rate(igdb_requests_total[5m]))
//
//   # Throttled Calls
//   rate(igdb_rate_limit_waits_total[5m])
//
//   # P95 Call Latency
//   histogram_quantile(0.95, rate(igdb_request_duration_seconds_bucket[5m]))
//
//   # Records Ingested per Resource
//   increase(igdb_ingest_upserts_total[1h])
