// Package discovery defines how candidate works are found: pull-based,
// lazily produced batches of classified identifiers.
//
// # Sequences
//
// A discovery function builds a Sequence for one run. Each Next call
// yields a Batch holding one source page's candidates, split into
// available, invalid and unavailable ids, plus a running total estimate.
// A nil batch with nil error marks exhaustion. Sequences are finite and
// never reused across runs; Close ends one early.
//
// # Registry
//
// Sources register their discovery functions under string ids during
// startup wiring:
//
//	reg := discovery.NewRegistry()
//	reg.Register("works", gallery.Works(client, cfg, logger))
//	fn, err := reg.Lookup("works")
//
// # Paged
//
// Most listings are plain paginated queries, so Paged turns a FetchFunc
// into a full Sequence. It handles the page range (including failing fast
// when the starting page lies beyond the known result count), classifies
// masked items, applies an optional inline validity check, keeps the
// total estimate from decreasing, and stops growing feeds once a newly
// fetched page no longer reaches below the previous page's minimum id.
// That last check assumes the source hands out ids monotonically; a feed
// that backfills old ids may be cut off a page early.
package discovery
