package fit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/inkvine/manrec/internal/domain"
	"github.com/inkvine/manrec/internal/domain/catalog"
	"github.com/inkvine/manrec/internal/index/dense"
	"github.com/inkvine/manrec/internal/index/sparse"
)

// --- Mocks ---

// lengthEmbedder returns a vector derived from each text's length, so a
// misplaced batch result would produce a detectable wrong row.
type lengthEmbedder struct {
	mu      sync.Mutex
	batches int
	err     error
}

func (m *lengthEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.batches++
	m.mu.Unlock()
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

type mockWriter struct {
	fingerprint string
	saved       bool
	err         error
}

func (m *mockWriter) Save(fingerprint string, _ *dense.Index, _ *sparse.Vectorizer) error {
	m.saved = true
	m.fingerprint = fingerprint
	return m.err
}

func testStore(n int) *catalog.Store {
	entries := make([]catalog.Entry, n)
	titles := []string{
		"Solo Leveling", "Tower of God", "Omniscient Reader", "The Beginning After The End",
		"Second Life Ranker", "Eleceed", "Lookism", "Hardcore Leveling Warrior",
	}
	for i := range entries {
		entries[i] = catalog.Entry{
			ID:          titles[i%len(titles)] + "-" + string(rune('a'+i)),
			Title:       titles[i%len(titles)],
			Description: "a story about " + titles[i%len(titles)],
		}
	}
	return catalog.NewStore(entries)
}

// --- Tests ---

func TestFit_BuildsAlignedIndices(t *testing.T) {
	store := testStore(7)
	embed := &lengthEmbedder{}
	writer := &mockWriter{}

	svc := New(Config{Embedder: embed, Artifacts: writer, BatchSize: 2, Workers: 3})

	dix, vec, err := svc.Fit(context.Background(), store)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if dix.Len() != store.Len() || vec.Len() != store.Len() {
		t.Fatalf("index rows dense=%d sparse=%d, want %d", dix.Len(), vec.Len(), store.Len())
	}
	if embed.batches != 4 {
		t.Errorf("expected 4 batches of size 2 over 7 texts, got %d", embed.batches)
	}
	if !writer.saved {
		t.Error("expected artifacts to be saved")
	}
	if writer.fingerprint != store.Fingerprint() {
		t.Errorf("artifacts stamped with %q, want %q", writer.fingerprint, store.Fingerprint())
	}
}

func TestFit_RowOrderMatchesCatalog(t *testing.T) {
	store := testStore(5)
	svc := New(Config{Embedder: &lengthEmbedder{}, BatchSize: 1, Workers: 4})

	dix, _, err := svc.Fit(context.Background(), store)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// Every document vector is {len(text), 1}, so searching with that exact
	// vector must surface a row built from a text of the same length. With
	// single-item batches on a shared pool, a completion-order bug would
	// scramble the rows.
	texts := catalog.CompositeTexts(store.Entries())
	for pos, text := range texts {
		hits, err := dix.Search([]float32{float32(len(text)), 1}, 1)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(texts[hits[0].Position]) != len(text) {
			t.Errorf("row %d misaligned: top hit %d", pos, hits[0].Position)
		}
	}
}

func TestFit_EmptyCatalog(t *testing.T) {
	svc := New(Config{Embedder: &lengthEmbedder{}})

	_, _, err := svc.Fit(context.Background(), catalog.NewStore(nil))
	if !errors.Is(err, domain.ErrIndexEmpty) {
		t.Fatalf("expected ErrIndexEmpty, got %v", err)
	}
}

func TestFit_EmbedErrorAbortsBeforeSave(t *testing.T) {
	store := testStore(6)
	embedErr := errors.New("provider down")
	writer := &mockWriter{}

	svc := New(Config{
		Embedder:  &lengthEmbedder{err: embedErr},
		Artifacts: writer,
		BatchSize: 2,
		Workers:   2,
	})

	_, _, err := svc.Fit(context.Background(), store)
	if !errors.Is(err, embedErr) {
		t.Fatalf("expected embed error, got %v", err)
	}
	if writer.saved {
		t.Error("artifacts must not be saved after a failed fit")
	}
}

func TestFit_SaveErrorPropagates(t *testing.T) {
	store := testStore(3)
	saveErr := errors.New("disk full")
	writer := &mockWriter{err: saveErr}

	svc := New(Config{Embedder: &lengthEmbedder{}, Artifacts: writer})

	_, _, err := svc.Fit(context.Background(), store)
	if !errors.Is(err, saveErr) {
		t.Fatalf("expected save error, got %v", err)
	}
}
