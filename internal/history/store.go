package history

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var bucketWorks = []byte("works")

// ErrNegativeID is returned when a work identifier or page number is
// negative. Identifiers are never coerced; the call fails before anything
// is written.
var ErrNegativeID = errors.New("history: negative identifier")

// Record is one work's durable history entry.
//
// A nil Pages slice means the work is fully downloaded. A non-nil Pages
// slice is a bit array where bit p set means page p has been saved.
type Record struct {
	ID      int64    `json:"id"`
	UserID  string   `json:"userId,omitempty"`
	User    string   `json:"user,omitempty"`
	Title   string   `json:"title,omitempty"`
	Comment string   `json:"comment,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Pages   []byte   `json:"pages,omitempty"`
}

// Complete returns true when the record marks the work fully downloaded.
func (r *Record) Complete() bool {
	return r.Pages == nil
}

// Store is the durable download history backed by BoltDB.
//
// Every record lives in the "works" bucket, keyed by the decimal work id
// and JSON-encoded. An in-memory mirror (work id to page bitset, nil for
// fully downloaded) is populated from the bucket by a background scan
// started at Open; membership queries are answered from the mirror once it
// has loaded and fall back to the bucket until then. Mutations update the
// mirror and the bucket together under the store's write lock, so two
// updates to the same record never interleave their read-modify-write.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger

	mu     sync.RWMutex
	mirror map[int64][]byte
	loaded bool

	ready chan struct{}
}

// Open opens (creating if necessary) the history database at path and
// starts the background mirror scan.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketWorks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:     db,
		logger: logger,
		mirror: make(map[int64][]byte),
		ready:  make(chan struct{}),
	}

	go s.loadMirror()

	return s, nil
}

// Ready returns a channel closed once the in-memory mirror holds every
// record. Queries work before that point; they just read the database
// directly.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// loadMirror scans the works bucket into the mirror. Records written while
// the scan runs are already in the mirror and are kept as-is; the scan only
// fills in what it does not have.
func (s *Store) loadMirror() {
	defer close(s.ready)

	type entry struct {
		id    int64
		pages []byte
	}
	var entries []entry

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorks)
		return b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode record %s: %w", k, err)
			}
			entries = append(entries, entry{id: rec.ID, pages: rec.Pages})
			return nil
		})
	})
	if err != nil {
		// Leave loaded unset; queries keep reading the database directly.
		s.logger.Error("history mirror scan failed", "error", err)
		return
	}

	s.mu.Lock()
	for _, e := range entries {
		if _, ok := s.mirror[e.id]; !ok {
			s.mirror[e.id] = e.pages
		}
	}
	s.loaded = true
	s.mu.Unlock()

	s.logger.Debug("history mirror loaded", "records", len(entries))
}

// Add marks a work fully downloaded, overwriting any existing record.
// Any partial page bitset is discarded; HasPage then reports true for
// every page of the work.
func (s *Store) Add(rec Record) error {
	if rec.ID < 0 {
		return ErrNegativeID
	}
	rec.Pages = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(rec)
}

// AddPage marks a single page of a work downloaded.
//
// With no existing record it creates one whose bit array is the minimal
// size that holds the page's bit. With an existing partial record it grows
// the bit array only when the page's byte index is beyond the current
// length, preserving the bits already set. When the work is already marked
// fully downloaded the call is a no-op.
func (s *Store) AddPage(id int64, page int) error {
	if id < 0 || page < 0 {
		return ErrNegativeID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Fully downloaded dominates partial.
	if pages, ok := s.mirror[id]; ok && pages == nil {
		return nil
	}

	rec, found, err := s.fetch(id)
	if err != nil {
		return err
	}
	if found && rec.Complete() {
		return nil
	}
	if !found {
		rec = Record{ID: id}
	}
	rec.Pages = setBit(rec.Pages, page)

	return s.putLocked(rec)
}

// Has reports whether any record, full or partial, exists for the work.
func (s *Store) Has(id int64) (bool, error) {
	if id < 0 {
		return false, ErrNegativeID
	}

	s.mu.RLock()
	if _, ok := s.mirror[id]; ok {
		s.mu.RUnlock()
		return true, nil
	}
	loaded := s.loaded
	s.mu.RUnlock()

	if loaded {
		return false, nil
	}

	// Mirror still loading, read the durable table.
	rec, found, err := s.fetch(id)
	if err != nil {
		return false, err
	}
	if found {
		s.promote(id, rec.Pages)
	}
	return found, nil
}

// HasPage reports whether a specific page of a work has been downloaded.
// True when the work is fully downloaded, or when a partial record's bit
// array covers the page's byte index and has the bit set. A page beyond
// the bit array is simply not downloaded, not an error.
func (s *Store) HasPage(id int64, page int) (bool, error) {
	if id < 0 || page < 0 {
		return false, ErrNegativeID
	}

	s.mu.RLock()
	if pages, ok := s.mirror[id]; ok {
		s.mu.RUnlock()
		return pages == nil || hasBit(pages, page), nil
	}
	loaded := s.loaded
	s.mu.RUnlock()

	if loaded {
		return false, nil
	}

	rec, found, err := s.fetch(id)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	s.promote(id, rec.Pages)
	return rec.Complete() || hasBit(rec.Pages, page), nil
}

// BulkAdd imports records wholesale, overwriting existing entries with the
// same id. Unlike Add it keeps any partial page bitset carried by the
// records, so exported history can be restored without losing page-level
// progress. All ids are validated before anything is written.
func (s *Store) BulkAdd(recs []Record) error {
	for _, rec := range recs {
		if rec.ID < 0 {
			return ErrNegativeID
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorks)
		for _, rec := range recs {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put(key(rec.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, rec := range recs {
		s.mirror[rec.ID] = rec.Pages
	}
	return nil
}

// All returns every record sorted by work id.
func (s *Store) All() ([]Record, error) {
	var recs []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorks)
		return b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode record %s: %w", k, err)
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Bucket keys are decimal strings, so cursor order is lexicographic.
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

// ExportCSV writes the full record set to w. The column set is fixed:
// id, userId, user, title, comment, tags. Tags are joined by comma.
func (s *Store) ExportCSV(w io.Writer) error {
	recs, err := s.All()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "userId", "user", "title", "comment", "tags"}); err != nil {
		return err
	}
	for _, rec := range recs {
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.UserID,
			rec.User,
			rec.Title,
			rec.Comment,
			strings.Join(rec.Tags, ","),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Clear removes every record. It waits for the mirror scan to finish so a
// concurrent scan cannot resurrect deleted entries.
func (s *Store) Clear() error {
	<-s.ready

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketWorks); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketWorks)
		return err
	})
	if err != nil {
		return err
	}

	s.mirror = make(map[int64][]byte)
	return nil
}

// Count returns the number of recorded works.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	if s.loaded {
		n := len(s.mirror)
		s.mu.RUnlock()
		return n, nil
	}
	s.mu.RUnlock()

	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWorks).ForEach(func(k, v []byte) error {
			n++
			return nil
		})
	})
	return n, err
}

// fetch reads a record straight from the database.
func (s *Store) fetch(id int64) (Record, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketWorks).Get(key(id)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return Record{}, false, err
	}
	if data == nil {
		return Record{}, false, nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode record %d: %w", id, err)
	}
	return rec, true, nil
}

// putLocked writes a record to the database and mirror. Caller holds the
// write lock.
func (s *Store) putLocked(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWorks).Put(key(rec.ID), data)
	})
	if err != nil {
		return err
	}

	s.mirror[rec.ID] = rec.Pages
	return nil
}

// promote copies a record's bitset read from the database into the mirror
// while the scan is still running. Mutations and the finished scan win over
// promotions.
func (s *Store) promote(id int64, pages []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return
	}
	if _, ok := s.mirror[id]; ok {
		return
	}
	s.mirror[id] = pages
}

func key(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

// setBit sets the page's bit, growing the array to the minimal length that
// covers the page's byte index.
func setBit(bits []byte, page int) []byte {
	byteIdx := page / 8
	if byteIdx >= len(bits) {
		grown := make([]byte, byteIdx+1)
		copy(grown, bits)
		bits = grown
	}
	bits[byteIdx] |= 1 << (page % 8)
	return bits
}

// hasBit reports whether the page's bit is set. Pages beyond the array are
// unset.
func hasBit(bits []byte, page int) bool {
	byteIdx := page / 8
	if byteIdx >= len(bits) {
		return false
	}
	return bits[byteIdx]&(1<<(page%8)) != 0
}
