package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/inkvine/manrec/internal/domain"
)

func testEntries() []Entry {
	return []Entry{
		{ID: "solo-leveling", Title: "Solo Leveling"},
		{ID: "tower-of-god", Title: "Tower of God"},
		{ID: "omniscient-reader", Title: "Omniscient Reader"},
	}
}

func TestStore_ByID(t *testing.T) {
	s := NewStore(testEntries())
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}

	pos, ok := s.ByID("tower-of-god")
	if !ok || pos != 1 {
		t.Errorf("ByID(tower-of-god) = %d, %v, want 1, true", pos, ok)
	}
	if s.At(pos).Title != "Tower of God" {
		t.Errorf("At(%d).Title = %q", pos, s.At(pos).Title)
	}

	if _, ok := s.ByID("nonexistent"); ok {
		t.Error("ByID(nonexistent) = true, want false")
	}
}

func TestStore_Fingerprint(t *testing.T) {
	a := NewStore(testEntries())
	b := NewStore(testEntries())
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical snapshots produced different fingerprints")
	}
	if len(a.Fingerprint()) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a.Fingerprint()))
	}

	reordered := testEntries()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	if NewStore(reordered).Fingerprint() == a.Fingerprint() {
		t.Error("reordered snapshot kept the same fingerprint")
	}

	retitled := testEntries()
	retitled[2].Title = "Omniscient Reader's Viewpoint"
	if NewStore(retitled).Fingerprint() == a.Fingerprint() {
		t.Error("retitled snapshot kept the same fingerprint")
	}
}

func TestLoadStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(sampleSnapshot), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadStore(path)
	if err != nil {
		t.Fatalf("LoadStore() error = %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if _, ok := s.ByID("solo-leveling"); !ok {
		t.Error("ByID(solo-leveling) missing after load")
	}
}

func TestLoadStore_MissingFile(t *testing.T) {
	if _, err := LoadStore(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("LoadStore() on a missing file succeeded")
	}
}

func TestLoadStore_InvalidSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(`[{"id": ""}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadStore(path)
	if !errors.Is(err, domain.ErrInvalidCatalog) {
		t.Fatalf("LoadStore() error = %v, want ErrInvalidCatalog", err)
	}
}
