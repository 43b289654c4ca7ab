package discovery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/handiism/artwork-downloader/internal/model"
)

var (
	// ErrUnknownSource is returned when looking up a discovery function id
	// that was never registered.
	ErrUnknownSource = errors.New("discovery: unknown source")

	// ErrInvalidRange is returned for page ranges whose end precedes the
	// start or whose bounds are not positive.
	ErrInvalidRange = errors.New("discovery: invalid page range")

	// ErrPageOutOfRange is returned when the requested starting page lies
	// beyond the source's known result count.
	ErrPageOutOfRange = errors.New("discovery: start page beyond result count")
)

// Batch is one page's worth of classified candidate identifiers plus a
// running total estimate.
//
// Available, Invalid and Unavailable are pairwise disjoint and together
// enumerate every candidate observed in the page. Total never decreases
// across the batches of a single sequence; it may be revised upward as
// more pages are discovered.
type Batch struct {
	// Total is the best-known estimate of the full result count.
	Total int

	// Page is the source page this batch was built from.
	Page int

	// Available holds ids that may be downloaded.
	Available []int64

	// Invalid holds ids rejected by the inline validity check.
	Invalid []int64

	// Unavailable holds ids whose works are masked or deleted upstream.
	Unavailable []int64
}

// Size returns the number of candidates observed in the batch.
func (b *Batch) Size() int {
	return len(b.Available) + len(b.Invalid) + len(b.Unavailable)
}

// PageRange restricts discovery to an inclusive range of 1-based pages.
// A nil *PageRange means all pages.
type PageRange struct {
	Start int
	End   int
}

// Validate checks the range bounds. A nil range is valid.
func (r *PageRange) Validate() error {
	if r == nil {
		return nil
	}
	if r.Start < 1 || r.End < 1 || r.End < r.Start {
		return ErrInvalidRange
	}
	return nil
}

// ParsePageRange parses "START" or "START-END" into a page range. Empty
// input returns nil, meaning all pages.
func ParsePageRange(s string) (*PageRange, error) {
	if s == "" {
		return nil, nil
	}

	first, second, ranged := strings.Cut(s, "-")
	start, err := strconv.Atoi(first)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", s, ErrInvalidRange)
	}
	end := start
	if ranged {
		end, err = strconv.Atoi(second)
		if err != nil {
			return nil, fmt.Errorf("invalid page range %q: %w", s, ErrInvalidRange)
		}
	}

	rng := &PageRange{Start: start, End: end}
	if err := rng.Validate(); err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", s, err)
	}
	return rng, nil
}

// ValidityFunc decides during discovery whether a work qualifies for
// download, using whatever metadata the listing already carries. Supplying
// one enables inline filtering; the orchestrator then skips its own filter
// pass for ids the sequence classified.
type ValidityFunc func(ctx context.Context, art *model.Artwork) (bool, error)

// Func builds a discovery sequence for one source. It is invoked once per
// run with the page range (nil meaning all pages), an optional validity
// check, and source-specific arguments such as a user id.
//
// Construction performs the first page fetch, so a starting page beyond
// the known result count fails here, before any batch is pulled.
type Func func(ctx context.Context, pages *PageRange, validity ValidityFunc, args ...string) (Sequence, error)

// Sequence is a lazy, finite, non-restartable stream of discovery batches.
//
// Next returns the following batch, or (nil, nil) once the sequence is
// exhausted. Close stops production early; subsequent Next calls report
// exhaustion. A sequence is not reusable across runs.
type Sequence interface {
	Next(ctx context.Context) (*Batch, error)
	Close() error
}
