package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/mediafetch/pkg/media"
	"github.com/Sternrassler/mediafetch/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultPageSize is the number of items requested per page.
const DefaultPageSize = 50

var (
	pagesFetchedTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "mediafetch_pages_fetched_total",
		Help: "Total page fetches by result",
	}, []string{"result"})

	itemsYieldedTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_items_yielded_total",
		Help: "Total items yielded by page streams",
	})
)

// PageFetcher fetches the page that follows cursor for a subject.
type PageFetcher interface {
	FetchPage(ctx context.Context, subjectID, cursor, capability string) (media.Page, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, subjectID, cursor, capability string) (media.Page, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, subjectID, cursor, capability string) (media.Page, error) {
	return f(ctx, subjectID, cursor, capability)
}

// Stream yields the items of a paginated timeline one at a time.
type Stream struct {
	fetcher    PageFetcher
	buffer     []media.Item
	cursor     media.PageInfo
	subjectID  string
	capability string

	done   bool
	err    error
	pages  int
	yields int
	logger zerolog.Logger
}

// NewStream creates a stream over seed followed by the pages reachable from
// seed's cursor. An empty capability disables pagination: only the seed items
// are yielded.
func NewStream(fetcher PageFetcher, seed media.Page, subjectID, capability string) *Stream {
	buffer := make([]media.Item, len(seed.Items))
	copy(buffer, seed.Items)

	return &Stream{
		fetcher:    fetcher,
		buffer:     buffer,
		cursor:     seed.PageInfo,
		subjectID:  subjectID,
		capability: capability,
		logger:     log.With().Str("component", "pagination").Str("subject_id", subjectID).Logger(),
	}
}

// Next returns the next item. The second result is false once the stream is
// exhausted; every later call returns false as well.
func (s *Stream) Next(ctx context.Context) (media.Item, bool) {
	if item, ok := s.pop(); ok {
		return item, true
	}

	if !s.canPaginate() {
		s.finish()
		return media.Item{}, false
	}

	if err := s.fetchNext(ctx); err != nil {
		s.err = err
		s.logger.Warn().
			Err(err).
			Int("pages_fetched", s.pages).
			Int("items_yielded", s.yields).
			Msg("Could not fetch next page of items")
		s.finish()
		return media.Item{}, false
	}

	// A freshly fetched page is consulted once. An empty page ends the
	// stream even if its cursor claims more.
	if item, ok := s.pop(); ok {
		return item, true
	}
	s.finish()
	return media.Item{}, false
}

// Err returns the page fetch error that ended the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Done reports whether the stream is exhausted.
func (s *Stream) Done() bool {
	return s.done
}

// PagesFetched returns the number of pages fetched beyond the seed page.
func (s *Stream) PagesFetched() int {
	return s.pages
}

func (s *Stream) pop() (media.Item, bool) {
	if s.done || len(s.buffer) == 0 {
		return media.Item{}, false
	}

	last := len(s.buffer) - 1
	item := s.buffer[last]
	s.buffer = s.buffer[:last]
	s.yields++
	itemsYieldedTotal.Inc()
	return item, true
}

func (s *Stream) canPaginate() bool {
	return !s.done && s.capability != "" && s.cursor.More()
}

func (s *Stream) fetchNext(ctx context.Context) error {
	cursor := s.cursor.Cursor()
	start := time.Now()

	page, err := s.fetcher.FetchPage(ctx, s.subjectID, cursor, s.capability)
	if err != nil {
		pagesFetchedTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("fetch page after cursor %q: %w", cursor, err)
	}
	pagesFetchedTotal.WithLabelValues("success").Inc()

	s.pages++
	s.buffer = page.Items
	s.cursor = page.PageInfo

	s.logger.Debug().
		Str("cursor", cursor).
		Int("items", len(page.Items)).
		Bool("has_next_page", page.PageInfo.More()).
		Dur("duration", time.Since(start)).
		Msg("Fetched page")

	return nil
}

func (s *Stream) finish() {
	if s.done {
		return
	}
	s.done = true
	s.buffer = nil

	s.logger.Info().
		Int("pages_fetched", s.pages).
		Int("items_yielded", s.yields).
		Msg("Item stream exhausted")
}
