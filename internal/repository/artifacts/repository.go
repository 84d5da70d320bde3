// Package artifacts persists fitted indices on disk. Each artifact carries
// an envelope stamping the catalog fingerprint it was built against, so a
// load over a changed catalog is rejected instead of silently serving
// misaligned rows.
package artifacts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/inkvine/manrec/internal/domain"
	"github.com/inkvine/manrec/internal/index/dense"
	"github.com/inkvine/manrec/internal/index/sparse"
)

// Artifact file names under the repository directory.
const (
	denseFile  = "dense.bin"
	sparseFile = "sparse.gob"
)

var envelopeMagic = [4]byte{'M', 'R', 'A', '1'}

// Repository stores both index artifacts under one directory.
type Repository struct {
	dir    string
	logger *zap.Logger
}

// New creates an artifact repository rooted at dir.
func New(dir string, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{dir: dir, logger: logger}
}

// Save writes both artifacts atomically: each is written to a temp file
// first, and renames happen only after both writes succeed.
func (r *Repository) Save(fingerprint string, dix *dense.Index, vec *sparse.Vectorizer) error {
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("artifacts dir: %w", err)
	}

	denseTmp, err := r.writeTemp(denseFile, fingerprint, dix.WriteTo)
	if err != nil {
		return fmt.Errorf("write dense artifact: %w", err)
	}
	sparseTmp, err := r.writeTemp(sparseFile, fingerprint, vec.WriteTo)
	if err != nil {
		_ = os.Remove(denseTmp)
		return fmt.Errorf("write sparse artifact: %w", err)
	}

	densePath := filepath.Join(r.dir, denseFile)
	if err := os.Rename(denseTmp, densePath); err != nil {
		_ = os.Remove(denseTmp)
		_ = os.Remove(sparseTmp)
		return fmt.Errorf("commit dense artifact: %w", err)
	}
	if err := os.Rename(sparseTmp, filepath.Join(r.dir, sparseFile)); err != nil {
		// Roll the dense rename back so both-or-neither holds.
		_ = os.Remove(densePath)
		_ = os.Remove(sparseTmp)
		return fmt.Errorf("commit sparse artifact: %w", err)
	}

	r.logger.Info("artifacts saved",
		zap.String("dir", r.dir),
		zap.String("fingerprint", fingerprint[:min(12, len(fingerprint))]),
	)
	return nil
}

// Load reads both artifacts if present and stamped with the given
// fingerprint. Missing artifacts or a fingerprint mismatch return
// (nil, nil, false, nil): the caller refits. A corrupt artifact is an error.
func (r *Repository) Load(fingerprint string) (*dense.Index, *sparse.Vectorizer, bool, error) {
	dix, ok, err := loadOne(filepath.Join(r.dir, denseFile), fingerprint, r.logger, dense.ReadFrom)
	if err != nil || !ok {
		return nil, nil, false, err
	}
	vec, ok, err := loadOne(filepath.Join(r.dir, sparseFile), fingerprint, r.logger, sparse.ReadFrom)
	if err != nil || !ok {
		return nil, nil, false, err
	}
	return dix, vec, true, nil
}

func (r *Repository) writeTemp(name, fingerprint string, write func(io.Writer) (int64, error)) (string, error) {
	f, err := os.CreateTemp(r.dir, name+".tmp-*")
	if err != nil {
		return "", err
	}
	path := f.Name()

	if err := writeEnvelope(f, fingerprint); err == nil {
		_, err = write(f)
	} else {
		err = fmt.Errorf("envelope: %w", err)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func loadOne[T any](
	path, fingerprint string, logger *zap.Logger, read func(io.Reader) (T, error),
) (T, bool, error) {
	var zero T

	f, err := os.Open(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	stamped, err := readEnvelope(f)
	if err != nil {
		return zero, false, fmt.Errorf("artifact %s: %w", path, err)
	}
	if stamped != fingerprint {
		logger.Warn("stale artifact, refit required",
			zap.String("path", path),
			zap.String("stamped", stamped[:min(12, len(stamped))]),
			zap.String("catalog", fingerprint[:min(12, len(fingerprint))]),
		)
		return zero, false, nil
	}

	v, err := read(f)
	if err != nil {
		return zero, false, fmt.Errorf("artifact %s: %w", path, err)
	}
	return v, true, nil
}

// writeEnvelope prepends the magic and the fingerprint stamp.
func writeEnvelope(w io.Writer, fingerprint string) error {
	if _, err := w.Write(envelopeMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(fingerprint))); err != nil {
		return err
	}
	_, err := io.WriteString(w, fingerprint)
	return err
}

func readEnvelope(r io.Reader) (string, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return "", fmt.Errorf("read magic: %w", domain.ErrArtifactCorrupt)
	}
	if magic != envelopeMagic {
		return "", fmt.Errorf("bad magic %q: %w", magic[:], domain.ErrArtifactCorrupt)
	}
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("read stamp length: %w", domain.ErrArtifactCorrupt)
	}
	stamp := make([]byte, n)
	if _, err := io.ReadFull(r, stamp); err != nil {
		return "", fmt.Errorf("read stamp: %w", domain.ErrArtifactCorrupt)
	}
	return string(stamp), nil
}
