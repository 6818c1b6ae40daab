// Package blobstore implements jarvish's content-addressable blob store
// (spec.md §4.4): immutable byte sequences identified by the lowercase hex
// SHA-256 of their uncompressed content, stored compressed on disk under
// {data_dir}/blobs/{hash[0..2]}/{hash[2..]}.
package blobstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ErrNotFound is returned by Get when the identity has no stored blob.
var ErrNotFound = errors.New("blobstore: blob not found")

// Store is a filesystem-backed, content-addressable blob store.
type Store struct {
	root string // {data_dir}/blobs
}

// Open creates (if necessary) the blob directory under dataDir and returns a
// Store rooted there.
func Open(dataDir string) (*Store, error) {
	root := filepath.Join(dataDir, "blobs")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob store directory: %w", err)
	}
	return &Store{root: root}, nil
}

// pathFor returns the on-disk path for a given hex identity.
func (s *Store) pathFor(id string) string {
	return filepath.Join(s.root, id[:2], id[2:])
}

// Put stores b, returning its content identity. The empty sequence is never
// stored: Put returns "" for it. Storing identical bytes twice is a no-op
// that returns the same identity both times.
func (s *Store) Put(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}

	sum := sha256.Sum256(b)
	id := hex.EncodeToString(sum[:])
	path := s.pathFor(id)

	if _, err := os.Stat(path); err == nil {
		return id, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat blob %s: %w", id, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob shard directory: %w", err)
	}

	var compressed bytes.Buffer
	enc, err := zstd.NewWriter(&compressed, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := enc.Write(b); err != nil {
		enc.Close()
		return "", fmt.Errorf("compress blob: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("finalize blob compression: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(compressed.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write temp blob file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp blob file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename temp blob file: %w", err)
	}

	return id, nil
}

// Get decompresses and returns the bytes stored under identity.
func (s *Store) Get(identity string) ([]byte, error) {
	if identity == "" {
		return nil, ErrNotFound
	}
	path := s.pathFor(identity)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open blob %s: %w", identity, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress blob %s: %w", identity, err)
	}
	return out, nil
}
