package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Store is an immutable in-memory catalog snapshot. Slice position is the
// join key shared with the dense and sparse indices; a Store is never
// mutated after construction, only replaced wholesale by a rebuild.
type Store struct {
	entries     []Entry
	byID        map[string]int
	fingerprint string
}

// NewStore builds a Store over validated entries.
func NewStore(entries []Entry) *Store {
	byID := make(map[string]int, len(entries))
	for i, e := range entries {
		byID[e.ID] = i
	}
	return &Store{
		entries:     entries,
		byID:        byID,
		fingerprint: fingerprint(entries),
	}
}

// LoadStore reads and validates a snapshot file.
func LoadStore(path string) (*Store, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	entries, err := ParseSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return NewStore(entries), nil
}

// Len returns the number of entries.
func (s *Store) Len() int { return len(s.entries) }

// At returns the entry at the given position. Positions come from index
// search hits and are trusted to be in range.
func (s *Store) At(pos int) Entry { return s.entries[pos] }

// ByID returns the position of the entry with the given id.
func (s *Store) ByID(id string) (int, bool) {
	pos, ok := s.byID[id]
	return pos, ok
}

// Entries returns the backing slice. Callers must not mutate it.
func (s *Store) Entries() []Entry { return s.entries }

// Fingerprint identifies this exact snapshot. Persisted index artifacts are
// stamped with it so a load against a different catalog is rejected instead
// of silently misaligning positions.
func (s *Store) Fingerprint() string { return s.fingerprint }

func fingerprint(entries []Entry) string {
	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e.ID))
		h.Write([]byte{0})
		h.Write([]byte(e.Title))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
