package download

import (
	"time"

	"github.com/Sternrassler/mediafetch/pkg/media"
)

// Outcome is the result kind of one item.
type Outcome string

const (
	// OutcomeFetched means the file did not exist and was downloaded.
	OutcomeFetched Outcome = "fetched"

	// OutcomeOverwritten means an existing file was replaced (Force).
	OutcomeOverwritten Outcome = "overwritten"

	// OutcomeSkipped means the file already existed. No request was made.
	OutcomeSkipped Outcome = "already_present"

	// OutcomeFailed means the item could not be saved. Result.Err holds the reason.
	OutcomeFailed Outcome = "failed"
)

// Result reports what happened to one item.
type Result struct {
	Item     media.Item
	Outcome  Outcome
	Path     string
	Bytes    int64
	Err      error
	Duration time.Duration
}

// Summary tallies results.
type Summary struct {
	Fetched     int
	Overwritten int
	Skipped     int
	Failed      int
	Bytes       int64
}

// Add records r.
func (s *Summary) Add(r Result) {
	switch r.Outcome {
	case OutcomeFetched:
		s.Fetched++
	case OutcomeOverwritten:
		s.Overwritten++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
	s.Bytes += r.Bytes
}

// Total returns the number of results recorded.
func (s Summary) Total() int {
	return s.Fetched + s.Overwritten + s.Skipped + s.Failed
}

// Collect drains results and returns them with their summary.
func Collect(results <-chan Result) ([]Result, Summary) {
	var (
		all     []Result
		summary Summary
	)
	for r := range results {
		all = append(all, r)
		summary.Add(r)
	}
	return all, summary
}
