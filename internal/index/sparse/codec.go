package sparse

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/inkvine/manrec/internal/domain"
)

// bundle is the on-disk form. Vocabulary, IDF, and matrix travel together:
// restoring any subset would desynchronize query projection from the rows.
type bundle struct {
	Vocab      map[string]int32
	IDF        []float64
	RowIndices [][]int32
	RowValues  [][]float64
}

// WriteTo serializes the fitted vectorizer with gob.
func (v *Vectorizer) WriteTo(w io.Writer) (int64, error) {
	b := bundle{
		Vocab:      v.vocab,
		IDF:        v.idf,
		RowIndices: make([][]int32, len(v.rows)),
		RowValues:  make([][]float64, len(v.rows)),
	}
	for i, r := range v.rows {
		b.RowIndices[i] = r.indices
		b.RowValues[i] = r.values
	}

	cw := &countingWriter{w: w}
	if err := gob.NewEncoder(cw).Encode(b); err != nil {
		return cw.n, fmt.Errorf("sparse encode: %w", err)
	}
	return cw.n, nil
}

// ReadFrom deserializes a vectorizer written by WriteTo. A bundle with any
// missing part is treated as corrupt, not as a partial restore.
func ReadFrom(r io.Reader) (*Vectorizer, error) {
	var b bundle
	if err := gob.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: sparse decode: %v", domain.ErrArtifactCorrupt, err)
	}
	if b.Vocab == nil || b.IDF == nil || b.RowIndices == nil || b.RowValues == nil {
		return nil, fmt.Errorf("%w: sparse bundle incomplete", domain.ErrArtifactCorrupt)
	}
	if len(b.IDF) != len(b.Vocab) {
		return nil, fmt.Errorf("%w: sparse idf/vocab size mismatch (%d vs %d)",
			domain.ErrArtifactCorrupt, len(b.IDF), len(b.Vocab))
	}
	// Query projection indexes idf by vocab id, so a stray id would panic at
	// score time rather than load time.
	for tok, id := range b.Vocab {
		if id < 0 || int(id) >= len(b.IDF) {
			return nil, fmt.Errorf("%w: sparse term %q has id %d outside idf range %d",
				domain.ErrArtifactCorrupt, tok, id, len(b.IDF))
		}
	}
	if len(b.RowIndices) != len(b.RowValues) {
		return nil, fmt.Errorf("%w: sparse matrix shape mismatch", domain.ErrArtifactCorrupt)
	}

	rows := make([]row, len(b.RowIndices))
	for i := range b.RowIndices {
		if len(b.RowIndices[i]) != len(b.RowValues[i]) {
			return nil, fmt.Errorf("%w: sparse row %d shape mismatch", domain.ErrArtifactCorrupt, i)
		}
		rows[i] = row{indices: b.RowIndices[i], values: b.RowValues[i]}
	}
	return &Vectorizer{vocab: b.Vocab, idf: b.IDF, rows: rows}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
