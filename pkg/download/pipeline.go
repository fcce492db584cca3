package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/mediafetch/pkg/media"
	"github.com/Sternrassler/mediafetch/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultMaxConcurrency is the number of simultaneous downloads.
	DefaultMaxConcurrency = 16

	// DefaultExtension is appended to the item identifier.
	DefaultExtension = "jpg"
)

// ErrInvalidID is reported for items whose identifier cannot name a file.
var ErrInvalidID = errors.New("invalid item identifier")

var (
	downloadsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "mediafetch_downloads_total",
		Help: "Total items processed by outcome",
	}, []string{"outcome"})

	downloadBytesTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_download_bytes_total",
		Help: "Total bytes written to disk",
	})

	downloadsInFlight = promauto.With(metrics.Registry).NewGauge(prometheus.GaugeOpts{
		Name: "mediafetch_downloads_in_flight",
		Help: "Number of items currently being processed",
	})

	downloadDuration = promauto.With(metrics.Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "mediafetch_download_duration_seconds",
		Help:    "Time to save one item in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
)

// Source yields items until it returns false.
type Source interface {
	Next(ctx context.Context) (media.Item, bool)
}

// Fetcher opens the resource at url for reading.
type Fetcher interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Policy controls how items are saved. It is fixed for a run.
type Policy struct {
	// Force re-downloads items whose file already exists. The old file is
	// truncated when the download starts, so a failed re-download leaves no
	// file behind.
	Force bool

	// MaxConcurrency caps the number of items processed at once
	MaxConcurrency int

	// Extension of the saved files, without dot
	Extension string
}

// DefaultPolicy returns the default policy.
func DefaultPolicy() Policy {
	return Policy{
		Force:          false,
		MaxConcurrency: DefaultMaxConcurrency,
		Extension:      DefaultExtension,
	}
}

// Pipeline downloads items into a directory.
type Pipeline struct {
	fetcher Fetcher
	dir     string
	policy  Policy
	logger  zerolog.Logger
}

// NewPipeline creates a pipeline writing into dir. The directory must exist.
func NewPipeline(fetcher Fetcher, dir string, policy Policy) *Pipeline {
	if policy.MaxConcurrency <= 0 {
		policy.MaxConcurrency = DefaultMaxConcurrency
	}
	policy.Extension = strings.TrimPrefix(policy.Extension, ".")
	if policy.Extension == "" {
		policy.Extension = DefaultExtension
	}

	return &Pipeline{
		fetcher: fetcher,
		dir:     dir,
		policy:  policy,
		logger:  log.With().Str("component", "download").Str("dir", dir).Logger(),
	}
}

// Policy returns the effective policy.
func (p *Pipeline) Policy() Policy {
	return p.policy
}

// Target returns the file an item is saved to.
func (p *Pipeline) Target(item media.Item) string {
	return filepath.Join(p.dir, item.ID+"."+p.policy.Extension)
}

// Run drains src and processes each item with at most MaxConcurrency items in
// flight. The returned channel yields one Result per item pulled and is closed
// after src is exhausted and every started item has finished. Cancelling ctx
// stops pulling; items already started fail or finish on their own.
func (p *Pipeline) Run(ctx context.Context, src Source) <-chan Result {
	results := make(chan Result, p.policy.MaxConcurrency)

	go func() {
		defer close(results)

		start := time.Now()
		slots := semaphore.NewWeighted(int64(p.policy.MaxConcurrency))
		var wg sync.WaitGroup
		pulled := 0

		for {
			if err := slots.Acquire(ctx, 1); err != nil {
				p.logger.Warn().Err(err).Int("pulled", pulled).Msg("Stopped pulling items")
				break
			}
			if err := ctx.Err(); err != nil {
				slots.Release(1)
				p.logger.Warn().Err(err).Int("pulled", pulled).Msg("Stopped pulling items")
				break
			}

			item, ok := src.Next(ctx)
			if !ok {
				slots.Release(1)
				break
			}
			pulled++

			wg.Add(1)
			downloadsInFlight.Inc()
			go func(item media.Item) {
				defer wg.Done()
				defer slots.Release(1)

				result := p.fetch(ctx, item)
				downloadsInFlight.Dec()
				results <- result
			}(item)
		}

		wg.Wait()

		p.logger.Info().
			Int("items", pulled).
			Dur("duration", time.Since(start)).
			Msg("Download run complete")
	}()

	return results
}

// fetch saves one item. It never returns an error: failures become
// OutcomeFailed results.
func (p *Pipeline) fetch(ctx context.Context, item media.Item) Result {
	start := time.Now()
	result := Result{Item: item, Path: p.Target(item)}

	if !validID(item.ID) {
		result.Path = ""
		return p.finish(result, start, OutcomeFailed, fmt.Errorf("%w: %q", ErrInvalidID, item.ID))
	}

	exists, err := fileExists(result.Path)
	if err != nil {
		return p.finish(result, start, OutcomeFailed, fmt.Errorf("stat target: %w", err))
	}
	if exists && !p.policy.Force {
		return p.finish(result, start, OutcomeSkipped, nil)
	}

	var (
		file *os.File
		body io.ReadCloser
		g    errgroup.Group
	)
	g.Go(func() error {
		f, err := os.Create(result.Path)
		if err != nil {
			return fmt.Errorf("create target: %w", err)
		}
		file = f
		return nil
	})
	g.Go(func() error {
		b, err := p.fetcher.Open(ctx, item.URL)
		if err != nil {
			return fmt.Errorf("get %s: %w", item.URL, err)
		}
		body = b
		return nil
	})

	if err := g.Wait(); err != nil {
		if body != nil {
			body.Close()
		}
		if file != nil {
			file.Close()
			p.discard(result.Path)
		}
		return p.finish(result, start, OutcomeFailed, err)
	}
	defer body.Close()

	n, err := io.Copy(file, body)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close target: %w", closeErr)
	}
	if err != nil {
		p.discard(result.Path)
		return p.finish(result, start, OutcomeFailed, fmt.Errorf("write target: %w", err))
	}

	result.Bytes = n
	downloadBytesTotal.Add(float64(n))
	if exists {
		return p.finish(result, start, OutcomeOverwritten, nil)
	}
	return p.finish(result, start, OutcomeFetched, nil)
}

// discard removes a partially written target so a later run does not mistake
// it for a complete download.
func (p *Pipeline) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove partial file")
	}
}

func (p *Pipeline) finish(result Result, start time.Time, outcome Outcome, err error) Result {
	result.Outcome = outcome
	result.Err = err
	result.Duration = time.Since(start)

	downloadsTotal.WithLabelValues(string(outcome)).Inc()
	if outcome != OutcomeSkipped {
		downloadDuration.Observe(result.Duration.Seconds())
	}

	event := p.logger.Debug()
	if outcome == OutcomeFailed {
		event = p.logger.Warn().Err(err)
	}
	event.
		Str("item_id", result.Item.ID).
		Str("outcome", string(outcome)).
		Int64("bytes", result.Bytes).
		Dur("duration", result.Duration).
		Msg("Item processed")

	return result
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
