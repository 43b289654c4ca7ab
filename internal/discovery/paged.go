package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/handiism/artwork-downloader/internal/model"
)

// Item is one candidate observed in a source listing. Work carries the
// partial metadata the listing exposes, at minimum the id; Masked marks
// works that are restricted or deleted upstream.
type Item struct {
	Work   *model.Artwork
	Masked bool
}

// PageResult is one raw source page before classification.
type PageResult struct {
	// Total is the source-reported result count for the whole query.
	// Growing feeds that report no count leave it zero.
	Total int

	// Items holds the page's candidates in listing order.
	Items []Item
}

// FetchFunc retrieves one raw page from the source. Pages are 1-based.
type FetchFunc func(ctx context.Context, page int) (*PageResult, error)

// PagedConfig configures a Paged sequence.
type PagedConfig struct {
	// Fetch retrieves raw pages.
	Fetch FetchFunc

	// Pages limits discovery to a page range. Nil means all pages.
	Pages *PageRange

	// Validity enables inline filtering: items it rejects are classified
	// invalid during discovery instead of after metadata parsing.
	Validity ValidityFunc

	// Growing marks a continuously-updating feed. The sequence then stops
	// once a new page no longer reaches below the previous page's minimum
	// id, and reports a cumulative total instead of a source count.
	Growing bool

	// Logger receives validity-check failures. Nil discards them.
	Logger *slog.Logger
}

// Paged walks a paginated listing page by page and classifies each page
// into a Batch. It implements Sequence for any source expressible as a
// FetchFunc.
type Paged struct {
	fetch    FetchFunc
	validity ValidityFunc
	growing  bool
	logger   *slog.Logger

	page     int
	endPage  int
	buffered *PageResult
	prevMin  int64
	havePrev bool
	maxTotal int
	served   int
	emitted  int
	done     atomic.Bool
}

// NewPaged validates the range and fetches the first page eagerly, so a
// requested starting page beyond the known result count fails at
// construction, before any batch is pulled.
func NewPaged(ctx context.Context, cfg PagedConfig) (*Paged, error) {
	if err := cfg.Pages.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	start, end := 1, 0
	if cfg.Pages != nil {
		start, end = cfg.Pages.Start, cfg.Pages.End
	}

	p := &Paged{
		fetch:    cfg.Fetch,
		validity: cfg.Validity,
		growing:  cfg.Growing,
		logger:   logger,
		page:     start,
		endPage:  end,
	}

	first, err := cfg.Fetch(ctx, start)
	if err != nil {
		return nil, err
	}
	if len(first.Items) == 0 {
		if cfg.Pages != nil {
			return nil, fmt.Errorf("%w: page %d, %d results", ErrPageOutOfRange, start, first.Total)
		}
		// The query simply has no results.
		p.done.Store(true)
		return p, nil
	}
	p.buffered = first

	return p, nil
}

// Next returns the next classified batch, or (nil, nil) once all pages in
// range are exhausted.
func (p *Paged) Next(ctx context.Context) (*Batch, error) {
	if p.done.Load() {
		return nil, nil
	}

	result := p.buffered
	p.buffered = nil
	if result == nil {
		var err error
		result, err = p.fetch(ctx, p.page)
		if err != nil {
			return nil, err
		}
		if p.done.Load() {
			// Closed while the fetch was in flight.
			return nil, nil
		}
		if len(result.Items) == 0 {
			p.done.Store(true)
			return nil, nil
		}
	}

	items := result.Items
	if p.growing {
		items = p.trimSeen(items)
		if len(items) == 0 {
			p.done.Store(true)
			return nil, nil
		}
	}

	batch := &Batch{Page: p.page}
	for _, item := range items {
		id := item.Work.ID
		switch {
		case item.Masked:
			batch.Unavailable = append(batch.Unavailable, id)
		case p.validity != nil:
			ok, err := p.validity(ctx, item.Work)
			switch {
			case err != nil:
				p.logger.Error("validity check failed", "work", id, "error", err)
				batch.Invalid = append(batch.Invalid, id)
			case ok:
				batch.Available = append(batch.Available, id)
			default:
				batch.Invalid = append(batch.Invalid, id)
			}
		default:
			batch.Available = append(batch.Available, id)
		}
	}

	p.served += len(result.Items)
	p.emitted += len(items)
	if p.growing {
		batch.Total = p.emitted
	} else {
		if result.Total > p.maxTotal {
			p.maxTotal = result.Total
		}
		batch.Total = p.maxTotal
	}

	p.page++
	if p.endPage > 0 && p.page > p.endPage {
		p.done.Store(true)
	}
	if !p.growing && p.maxTotal > 0 && p.served >= p.maxTotal {
		p.done.Store(true)
	}

	return batch, nil
}

// Close stops production; later Next calls report exhaustion.
func (p *Paged) Close() error {
	p.done.Store(true)
	return nil
}

// trimSeen drops items already covered by the previous page. A new page
// whose minimum id does not reach below the previous minimum carries
// nothing new, which ends the feed. Assumes the source allocates ids
// monotonically; reordered or backfilled feeds may end slightly early.
func (p *Paged) trimSeen(items []Item) []Item {
	min := minID(items)
	if p.havePrev {
		if min >= p.prevMin {
			return nil
		}
		kept := make([]Item, 0, len(items))
		for _, it := range items {
			if it.Work.ID < p.prevMin {
				kept = append(kept, it)
			}
		}
		items = kept
	}
	p.prevMin = min
	p.havePrev = true
	return items
}

func minID(items []Item) int64 {
	min := items[0].Work.ID
	for _, it := range items[1:] {
		if it.Work.ID < min {
			min = it.Work.ID
		}
	}
	return min
}
