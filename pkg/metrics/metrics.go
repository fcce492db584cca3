// Package metrics exposes the Prometheus metrics of mediafetch over HTTP.
// All metrics are defined in their respective packages (client, cache,
// pagination, download) via promauto.With(Registry). This package imports
// none of them.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var registry = prometheus.NewRegistry()

// Registry is the registerer every mediafetch metric is registered with.
var Registry prometheus.Registerer = registry

// Gatherer is the source served by Handler.
var Gatherer prometheus.Gatherer = registry

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

const shutdownTimeout = 5 * time.Second

// Handler returns the /metrics handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Mux returns a mux serving /metrics and /health.
func Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// ListenAndServe listens on addr and calls Serve.
func ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return Serve(ctx, ln)
}

// Serve serves Mux on ln until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("Metrics server started")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - mediafetch_requests_total{endpoint, status} (Counter): Requests by endpoint (profile, page, media) and HTTP status
//   - mediafetch_request_duration_seconds{endpoint} (Histogram): Time to response headers
//   - mediafetch_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Cache Metrics (pkg/cache):
//   - mediafetch_cache_hits_total (Counter): Fresh page responses served from Redis without a request
//   - mediafetch_cache_misses_total (Counter): Page lookups without a cached entry
//   - mediafetch_cache_not_modified_total (Counter): 304 revalidations
//   - mediafetch_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pagination Metrics (pkg/pagination):
//   - mediafetch_pages_fetched_total{result} (Counter): Page fetches by result (success, error)
//   - mediafetch_items_yielded_total (Counter): Items handed to consumers
//
// Download Metrics (pkg/download):
//   - mediafetch_downloads_total{outcome} (Counter): Items by outcome (fetched, overwritten, already_present, failed)
//   - mediafetch_download_bytes_total (Counter): Bytes written to disk
//   - mediafetch_downloads_in_flight (Gauge): Items currently being processed
//   - mediafetch_download_duration_seconds (Histogram): Time to save one item
//
// Example Prometheus Queries:
//
//   # Failure ratio
//   sum(rate(mediafetch_downloads_total{outcome="failed"}[5m])) /
//   sum(rate(mediafetch_downloads_total[5m]))
//
//   # Throughput in bytes
//   rate(mediafetch_download_bytes_total[1m])
//
//   # Page cache effectiveness
//   rate(mediafetch_cache_not_modified_total[5m]) / rate(mediafetch_requests_total{endpoint="page"}[5m])
