package dense

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/inkvine/manrec/internal/domain"
)

// Binary layout: dims uint32, rows uint32, then rows*dims little-endian
// float32 values. Vectors are already normalized at Build time, so the
// round-trip restores retrieval behavior exactly.

// WriteTo serializes the index.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	var n int64
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:], uint32(ix.dims))
	binary.LittleEndian.PutUint32(header[4:], uint32(ix.rows))
	wn, err := w.Write(header)
	n += int64(wn)
	if err != nil {
		return n, fmt.Errorf("dense write header: %w", err)
	}

	buf := make([]byte, len(ix.data)*4)
	for i, f := range ix.data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	wn, err = w.Write(buf)
	n += int64(wn)
	if err != nil {
		return n, fmt.Errorf("dense write data: %w", err)
	}
	return n, nil
}

// ReadFrom deserializes an index written by WriteTo.
func ReadFrom(r io.Reader) (*Index, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: dense header: %v", domain.ErrArtifactCorrupt, err)
	}
	dims := int(binary.LittleEndian.Uint32(header[0:]))
	rows := int(binary.LittleEndian.Uint32(header[4:]))
	if dims <= 0 || rows <= 0 {
		return nil, fmt.Errorf("%w: dense header dims=%d rows=%d", domain.ErrArtifactCorrupt, dims, rows)
	}

	buf := make([]byte, dims*rows*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: dense data: %v", domain.ErrArtifactCorrupt, err)
	}
	data := make([]float32, dims*rows)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return &Index{dims: dims, rows: rows, data: data}, nil
}
