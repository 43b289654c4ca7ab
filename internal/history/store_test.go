package history

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	<-s.Ready()
	return s
}

func TestStore_AddPage_MinimalBitset(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddPage(1, 3); err != nil {
		t.Fatalf("AddPage(1, 3) error = %v", err)
	}

	recs, err := s.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("All() returned %d records, want 1", len(recs))
	}
	if got, want := recs[0].Pages, []byte{0x08}; !bytes.Equal(got, want) {
		t.Errorf("Pages = %v, want %v", got, want)
	}

	tests := []struct {
		page int
		want bool
	}{
		{3, true},
		{4, false},
		{9, false},
	}
	for _, tt := range tests {
		got, err := s.HasPage(1, tt.page)
		if err != nil {
			t.Fatalf("HasPage(1, %d) error = %v", tt.page, err)
		}
		if got != tt.want {
			t.Errorf("HasPage(1, %d) = %v, want %v", tt.page, got, tt.want)
		}
	}
}

func TestStore_AddPage_GrowthPreservesBits(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddPage(1, 3); err != nil {
		t.Fatalf("AddPage(1, 3) error = %v", err)
	}
	if err := s.AddPage(1, 10); err != nil {
		t.Fatalf("AddPage(1, 10) error = %v", err)
	}

	recs, err := s.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if got, want := recs[0].Pages, []byte{0x08, 0x04}; !bytes.Equal(got, want) {
		t.Errorf("Pages = %v, want %v", got, want)
	}

	for _, page := range []int{3, 10} {
		got, err := s.HasPage(1, page)
		if err != nil {
			t.Fatalf("HasPage(1, %d) error = %v", page, err)
		}
		if !got {
			t.Errorf("HasPage(1, %d) = false, want true", page)
		}
	}
}

func TestStore_Add_FullClearsPartial(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddPage(2, 1); err != nil {
		t.Fatalf("AddPage(2, 1) error = %v", err)
	}
	if err := s.Add(Record{ID: 2, User: "someone", Title: "a work"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	recs, err := s.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if recs[0].Pages != nil {
		t.Errorf("Pages = %v, want nil after full add", recs[0].Pages)
	}

	// A fully downloaded work covers every page.
	for _, page := range []int{0, 1, 7, 100} {
		got, err := s.HasPage(2, page)
		if err != nil {
			t.Fatalf("HasPage(2, %d) error = %v", page, err)
		}
		if !got {
			t.Errorf("HasPage(2, %d) = false, want true", page)
		}
	}
}

func TestStore_AddPage_AfterFullIsNoOp(t *testing.T) {
	s := newTestStore(t)

	if err := s.Add(Record{ID: 3}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.AddPage(3, 5); err != nil {
		t.Fatalf("AddPage(3, 5) error = %v", err)
	}

	recs, err := s.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if recs[0].Pages != nil {
		t.Errorf("Pages = %v, want nil (full record must dominate)", recs[0].Pages)
	}
}

func TestStore_NegativeIdentifiers(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name string
		call func() error
	}{
		{"add", func() error { return s.Add(Record{ID: -1}) }},
		{"addPage id", func() error { return s.AddPage(-1, 0) }},
		{"addPage page", func() error { return s.AddPage(1, -2) }},
		{"has", func() error { _, err := s.Has(-5); return err }},
		{"hasPage", func() error { _, err := s.HasPage(-5, 0); return err }},
		{"bulkAdd", func() error { return s.BulkAdd([]Record{{ID: 4}, {ID: -4}}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrNegativeID) {
				t.Errorf("error = %v, want ErrNegativeID", err)
			}
		})
	}

	// Nothing may have been written.
	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}

func TestStore_Has(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Has(42)
	if err != nil {
		t.Fatalf("Has(42) error = %v", err)
	}
	if got {
		t.Error("Has(42) = true before any add")
	}

	if err := s.AddPage(42, 0); err != nil {
		t.Fatalf("AddPage(42, 0) error = %v", err)
	}
	got, err = s.Has(42)
	if err != nil {
		t.Fatalf("Has(42) error = %v", err)
	}
	if !got {
		t.Error("Has(42) = false after partial add")
	}
}

func TestStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Add(Record{ID: 7, User: "u", Title: "t", Tags: []string{"a", "b"}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.AddPage(8, 12); err != nil {
		t.Fatalf("AddPage() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(path, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	<-s.Ready()

	for _, id := range []int64{7, 8} {
		got, err := s.Has(id)
		if err != nil {
			t.Fatalf("Has(%d) error = %v", id, err)
		}
		if !got {
			t.Errorf("Has(%d) = false after reopen", id)
		}
	}
	got, err := s.HasPage(8, 12)
	if err != nil {
		t.Fatalf("HasPage(8, 12) error = %v", err)
	}
	if !got {
		t.Error("HasPage(8, 12) = false after reopen")
	}
}

func TestStore_QueriesBeforeReady(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Add(Record{ID: 9}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.Close()

	// Query immediately after reopen, without waiting for the mirror.
	s, err = Open(path, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	got, err := s.Has(9)
	if err != nil {
		t.Fatalf("Has(9) error = %v", err)
	}
	if !got {
		t.Error("Has(9) = false right after reopen")
	}
}

func TestStore_AllSortedByID(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []int64{10, 2, 33} {
		if err := s.Add(Record{ID: id}); err != nil {
			t.Fatalf("Add(%d) error = %v", id, err)
		}
	}

	recs, err := s.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}

	want := []int64{2, 10, 33}
	if len(recs) != len(want) {
		t.Fatalf("All() returned %d records, want %d", len(recs), len(want))
	}
	for i, id := range want {
		if recs[i].ID != id {
			t.Errorf("All()[%d].ID = %d, want %d", i, recs[i].ID, id)
		}
	}
}

func TestStore_BulkAddKeepsBitsets(t *testing.T) {
	s := newTestStore(t)

	recs := []Record{
		{ID: 1, User: "a"},
		{ID: 2, User: "b", Pages: []byte{0x02}},
	}
	if err := s.BulkAdd(recs); err != nil {
		t.Fatalf("BulkAdd() error = %v", err)
	}

	got, err := s.HasPage(2, 1)
	if err != nil {
		t.Fatalf("HasPage(2, 1) error = %v", err)
	}
	if !got {
		t.Error("HasPage(2, 1) = false, want bitset preserved by bulk import")
	}
	got, err = s.HasPage(2, 0)
	if err != nil {
		t.Fatalf("HasPage(2, 0) error = %v", err)
	}
	if got {
		t.Error("HasPage(2, 0) = true, want false")
	}
}

func TestStore_ExportCSV(t *testing.T) {
	s := newTestStore(t)

	err := s.BulkAdd([]Record{
		{ID: 5, UserID: "77", User: "erina", Title: "spring", Comment: "first", Tags: []string{"landscape", "oc"}},
		{ID: 3, UserID: "12", User: "kei", Title: "sketch, rough", Tags: nil},
	})
	if err != nil {
		t.Fatalf("BulkAdd() error = %v", err)
	}

	var buf bytes.Buffer
	if err := s.ExportCSV(&buf); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}

	want := "id,userId,user,title,comment,tags\n" +
		"3,12,kei,\"sketch, rough\",,\n" +
		"5,77,erina,spring,first,\"landscape,oc\"\n"
	if got := buf.String(); got != want {
		t.Errorf("ExportCSV() =\n%q\nwant\n%q", got, want)
	}
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)

	if err := s.Add(Record{ID: 1}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	got, err := s.Has(1)
	if err != nil {
		t.Fatalf("Has(1) error = %v", err)
	}
	if got {
		t.Error("Has(1) = true after Clear")
	}
	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}
