// Package catalog holds the immutable catalog snapshot the recommender ranks.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/inkvine/manrec/internal/domain"
)

// Entry is one catalog record, as produced by the upstream ETL merge.
// ID and Title are required; everything else may be absent in the snapshot.
type Entry struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	AltTitles      []string `json:"alt_titles"`
	Description    string   `json:"description"`
	Tags           []string `json:"tags"`
	Year           *int     `json:"year"`
	CoverArt       string   `json:"cover_art"`
	OfficialEnLink string   `json:"official_en_link"`
	Rating         *float64 `json:"rating"`
	Popularity     int      `json:"popularity"`
}

// ParseSnapshot decodes a JSON array of catalog entries and validates it.
// Any entry missing id or title fails the whole parse: the array position is
// the join key between the dense and sparse indices, so a partially valid
// snapshot is worse than no snapshot.
func ParseSnapshot(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", domain.ErrInvalidCatalog, err)
	}

	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", domain.ErrInvalidCatalog, i)
		}
		if e.Title == "" {
			return nil, fmt.Errorf("%w: entry %d (%s) has no title", domain.ErrInvalidCatalog, i, e.ID)
		}
		if prev, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q at positions %d and %d",
				domain.ErrInvalidCatalog, e.ID, prev, i)
		}
		seen[e.ID] = i
	}
	return entries, nil
}
