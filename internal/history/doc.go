// Package history persists which works (and which pages of multi-page
// works) have already been downloaded.
//
// # Records
//
// Each work has one Record keyed by its numeric id. A record either marks
// the work fully downloaded (nil Pages) or carries a growable page bitset
// where bit p set means page p has been saved. Fully downloaded always
// dominates partial: a full Add discards the bitset and page queries then
// report every page as saved.
//
// # Store
//
// Store keeps records in a BoltDB bucket and answers membership queries
// from an in-memory mirror:
//
//	store, err := history.Open("/data/history.db", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	store.Add(history.Record{ID: 104850, User: "erina", Title: "spring"})
//	store.AddPage(104851, 0)
//
//	done, _ := store.HasPage(104851, 0) // true
//
// The mirror is filled by a background scan started at Open; until the
// scan finishes, queries read the database directly, so results are
// correct either way. Mutations update mirror and database together under
// one lock.
//
// # Import and Export
//
// All, BulkAdd and ExportCSV move the whole record set in and out. CSV
// columns are fixed: id, userId, user, title, comment, tags (comma-joined).
package history
