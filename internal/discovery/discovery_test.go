package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/handiism/artwork-downloader/internal/model"
)

func page(ids ...int64) []Item {
	items := make([]Item, len(ids))
	for i, id := range ids {
		items[i] = Item{Work: &model.Artwork{ID: id}}
	}
	return items
}

// fakeSource serves fixed pages and counts fetches.
type fakeSource struct {
	total int
	pages [][]Item
	calls int
}

func (f *fakeSource) fetch(ctx context.Context, pageNum int) (*PageResult, error) {
	f.calls++
	if pageNum < 1 || pageNum > len(f.pages) {
		return &PageResult{Total: f.total}, nil
	}
	return &PageResult{Total: f.total, Items: f.pages[pageNum-1]}, nil
}

func collect(t *testing.T, seq Sequence) []*Batch {
	t.Helper()
	var batches []*Batch
	for {
		batch, err := seq.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if batch == nil {
			return batches
		}
		batches = append(batches, batch)
	}
}

func assertDisjoint(t *testing.T, b *Batch) {
	t.Helper()
	seen := make(map[int64]int)
	for _, id := range b.Available {
		seen[id]++
	}
	for _, id := range b.Invalid {
		seen[id]++
	}
	for _, id := range b.Unavailable {
		seen[id]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("id %d classified %d times, lists must be disjoint", id, n)
		}
	}
}

func TestPageRange_Validate(t *testing.T) {
	tests := []struct {
		name    string
		r       *PageRange
		wantErr bool
	}{
		{"nil means all pages", nil, false},
		{"simple range", &PageRange{Start: 1, End: 3}, false},
		{"single page", &PageRange{Start: 2, End: 2}, false},
		{"end before start", &PageRange{Start: 3, End: 1}, true},
		{"zero start", &PageRange{Start: 0, End: 2}, true},
		{"zero end", &PageRange{Start: 1, End: 0}, true},
		{"negative start", &PageRange{Start: -1, End: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidRange) {
				t.Errorf("Validate() = %v, want ErrInvalidRange", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		in      string
		want    *PageRange
		wantErr bool
	}{
		{"", nil, false},
		{"3", &PageRange{Start: 3, End: 3}, false},
		{"2-5", &PageRange{Start: 2, End: 5}, false},
		{"5-2", nil, true},
		{"0", nil, true},
		{"a-b", nil, true},
		{"1-", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePageRange(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRange) {
					t.Fatalf("ParsePageRange(%q) error = %v, want ErrInvalidRange", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePageRange(%q) error = %v", tt.in, err)
			}
			if tt.want == nil {
				if got != nil {
					t.Fatalf("ParsePageRange(%q) = %+v, want nil", tt.in, got)
				}
				return
			}
			if got == nil || got.Start != tt.want.Start || got.End != tt.want.End {
				t.Errorf("ParsePageRange(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Lookup("works"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Lookup() error = %v, want ErrUnknownSource", err)
	}

	fn := func(ctx context.Context, pages *PageRange, validity ValidityFunc, args ...string) (Sequence, error) {
		return nil, nil
	}
	reg.Register("works", fn)
	reg.Register("latest", fn)

	if _, err := reg.Lookup("works"); err != nil {
		t.Errorf("Lookup() error = %v after Register", err)
	}

	got := reg.Sources()
	want := []string{"latest", "works"}
	if len(got) != len(want) {
		t.Fatalf("Sources() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sources()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPaged_WalksAllPages(t *testing.T) {
	src := &fakeSource{total: 5, pages: [][]Item{page(1, 2), page(3, 4), page(5)}}

	seq, err := NewPaged(context.Background(), PagedConfig{Fetch: src.fetch})
	if err != nil {
		t.Fatalf("NewPaged() error = %v", err)
	}

	batches := collect(t, seq)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	for i, want := range [][]int64{{1, 2}, {3, 4}, {5}} {
		b := batches[i]
		if b.Page != i+1 {
			t.Errorf("batch %d page = %d, want %d", i, b.Page, i+1)
		}
		if b.Total != 5 {
			t.Errorf("batch %d total = %d, want 5", i, b.Total)
		}
		if len(b.Available) != len(want) {
			t.Fatalf("batch %d available = %v, want %v", i, b.Available, want)
		}
		for j, id := range want {
			if b.Available[j] != id {
				t.Errorf("batch %d available[%d] = %d, want %d", i, j, b.Available[j], id)
			}
		}
		assertDisjoint(t, b)
	}

	// Once the reported total is served there is nothing left to fetch.
	if src.calls != 3 {
		t.Errorf("fetch called %d times, want 3", src.calls)
	}
}

func TestPaged_EmptyResultSet(t *testing.T) {
	src := &fakeSource{}

	seq, err := NewPaged(context.Background(), PagedConfig{Fetch: src.fetch})
	if err != nil {
		t.Fatalf("NewPaged() error = %v", err)
	}
	if batches := collect(t, seq); len(batches) != 0 {
		t.Errorf("got %d batches from an empty result set, want 0", len(batches))
	}
	if src.calls != 1 {
		t.Errorf("fetch called %d times, want 1", src.calls)
	}
}

func TestPaged_StartBeyondCount(t *testing.T) {
	src := &fakeSource{total: 6, pages: [][]Item{page(1, 2), page(3, 4), page(5, 6)}}

	_, err := NewPaged(context.Background(), PagedConfig{
		Fetch: src.fetch,
		Pages: &PageRange{Start: 5, End: 6},
	})
	if !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("NewPaged() error = %v, want ErrPageOutOfRange", err)
	}
	if src.calls != 1 {
		t.Errorf("fetch called %d times, want 1 (no batches pulled)", src.calls)
	}
}

func TestPaged_InvalidRange(t *testing.T) {
	src := &fakeSource{total: 2, pages: [][]Item{page(1, 2)}}

	_, err := NewPaged(context.Background(), PagedConfig{
		Fetch: src.fetch,
		Pages: &PageRange{Start: 3, End: 1},
	})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("NewPaged() error = %v, want ErrInvalidRange", err)
	}
	if src.calls != 0 {
		t.Errorf("fetch called %d times before validation, want 0", src.calls)
	}
}

func TestPaged_RangeLimitsPages(t *testing.T) {
	src := &fakeSource{total: 8, pages: [][]Item{page(1, 2), page(3, 4), page(5, 6), page(7, 8)}}

	seq, err := NewPaged(context.Background(), PagedConfig{
		Fetch: src.fetch,
		Pages: &PageRange{Start: 2, End: 3},
	})
	if err != nil {
		t.Fatalf("NewPaged() error = %v", err)
	}

	batches := collect(t, seq)
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if batches[0].Page != 2 || batches[1].Page != 3 {
		t.Errorf("pages = %d, %d, want 2, 3", batches[0].Page, batches[1].Page)
	}
	if src.calls != 2 {
		t.Errorf("fetch called %d times, want 2", src.calls)
	}
}

func TestPaged_TotalNeverDecreases(t *testing.T) {
	totals := []int{7, 5, 9}
	pages := [][]Item{page(1, 2), page(3, 4), page(5, 6)}
	calls := 0
	fetch := func(ctx context.Context, pageNum int) (*PageResult, error) {
		calls++
		if pageNum > len(pages) {
			return &PageResult{Total: totals[len(totals)-1]}, nil
		}
		return &PageResult{Total: totals[pageNum-1], Items: pages[pageNum-1]}, nil
	}

	seq, err := NewPaged(context.Background(), PagedConfig{Fetch: fetch})
	if err != nil {
		t.Fatalf("NewPaged() error = %v", err)
	}

	batches := collect(t, seq)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	want := []int{7, 7, 9}
	for i, b := range batches {
		if b.Total != want[i] {
			t.Errorf("batch %d total = %d, want %d", i, b.Total, want[i])
		}
	}
}

func TestPaged_InlineValidity(t *testing.T) {
	src := &fakeSource{total: 4, pages: [][]Item{page(10, 11, 12, 13)}}

	validity := func(ctx context.Context, art *model.Artwork) (bool, error) {
		if art.ID == 13 {
			return false, errors.New("metadata missing")
		}
		return art.ID%2 == 0, nil
	}

	seq, err := NewPaged(context.Background(), PagedConfig{Fetch: src.fetch, Validity: validity})
	if err != nil {
		t.Fatalf("NewPaged() error = %v", err)
	}

	batches := collect(t, seq)
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	b := batches[0]
	assertDisjoint(t, b)

	wantAvailable := []int64{10, 12}
	wantInvalid := []int64{11, 13}
	if len(b.Available) != 2 || b.Available[0] != wantAvailable[0] || b.Available[1] != wantAvailable[1] {
		t.Errorf("available = %v, want %v", b.Available, wantAvailable)
	}
	if len(b.Invalid) != 2 || b.Invalid[0] != wantInvalid[0] || b.Invalid[1] != wantInvalid[1] {
		t.Errorf("invalid = %v, want %v", b.Invalid, wantInvalid)
	}
}

func TestPaged_MaskedItems(t *testing.T) {
	items := page(20, 21, 22)
	items[1].Masked = true
	src := &fakeSource{total: 3, pages: [][]Item{items}}

	validityCalls := 0
	validity := func(ctx context.Context, art *model.Artwork) (bool, error) {
		validityCalls++
		return true, nil
	}

	seq, err := NewPaged(context.Background(), PagedConfig{Fetch: src.fetch, Validity: validity})
	if err != nil {
		t.Fatalf("NewPaged() error = %v", err)
	}

	batches := collect(t, seq)
	b := batches[0]
	assertDisjoint(t, b)

	if len(b.Unavailable) != 1 || b.Unavailable[0] != 21 {
		t.Errorf("unavailable = %v, want [21]", b.Unavailable)
	}
	if len(b.Available) != 2 {
		t.Errorf("available = %v, want [20 22]", b.Available)
	}
	if validityCalls != 2 {
		t.Errorf("validity called %d times, want 2 (masked items skip the check)", validityCalls)
	}
}

func TestPaged_GrowingFeedStops(t *testing.T) {
	src := &fakeSource{pages: [][]Item{page(100, 99, 98), page(98, 97), page(97)}}

	seq, err := NewPaged(context.Background(), PagedConfig{Fetch: src.fetch, Growing: true})
	if err != nil {
		t.Fatalf("NewPaged() error = %v", err)
	}

	batches := collect(t, seq)
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}

	if got := batches[0].Available; len(got) != 3 {
		t.Errorf("batch 0 available = %v, want [100 99 98]", got)
	}
	if batches[0].Total != 3 {
		t.Errorf("batch 0 total = %d, want 3", batches[0].Total)
	}

	// The overlap with the previous page is dropped.
	if got := batches[1].Available; len(got) != 1 || got[0] != 97 {
		t.Errorf("batch 1 available = %v, want [97]", got)
	}
	if batches[1].Total != 4 {
		t.Errorf("batch 1 total = %d, want 4", batches[1].Total)
	}
}

func TestPaged_GrowingFeedFrozen(t *testing.T) {
	src := &fakeSource{pages: [][]Item{page(100, 99, 98), page(100, 99, 98), page(100, 99, 98)}}

	seq, err := NewPaged(context.Background(), PagedConfig{Fetch: src.fetch, Growing: true})
	if err != nil {
		t.Fatalf("NewPaged() error = %v", err)
	}

	batches := collect(t, seq)
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1 (repeating page must end the feed)", len(batches))
	}
	if src.calls != 2 {
		t.Errorf("fetch called %d times, want 2", src.calls)
	}
}

func TestPaged_CloseStopsProduction(t *testing.T) {
	src := &fakeSource{total: 6, pages: [][]Item{page(1, 2), page(3, 4), page(5, 6)}}

	seq, err := NewPaged(context.Background(), PagedConfig{Fetch: src.fetch})
	if err != nil {
		t.Fatalf("NewPaged() error = %v", err)
	}

	if batch, err := seq.Next(context.Background()); err != nil || batch == nil {
		t.Fatalf("Next() = %v, %v, want first batch", batch, err)
	}
	if err := seq.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	batch, err := seq.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v after Close", err)
	}
	if batch != nil {
		t.Errorf("Next() = %+v after Close, want nil", batch)
	}
	if src.calls != 1 {
		t.Errorf("fetch called %d times, want 1 (no fetch after Close)", src.calls)
	}
}

func TestPaged_FetchErrorPropagates(t *testing.T) {
	wantErr := errors.New("listing fetch failed")
	calls := 0
	fetch := func(ctx context.Context, pageNum int) (*PageResult, error) {
		calls++
		if pageNum == 2 {
			return nil, wantErr
		}
		return &PageResult{Total: 4, Items: page(1, 2)}, nil
	}

	seq, err := NewPaged(context.Background(), PagedConfig{Fetch: fetch})
	if err != nil {
		t.Fatalf("NewPaged() error = %v", err)
	}

	if _, err := seq.Next(context.Background()); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	if _, err := seq.Next(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("second Next() error = %v, want %v", err, wantErr)
	}
}
