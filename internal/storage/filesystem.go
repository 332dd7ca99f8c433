package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goa-gov/sewa-connect/internal/shared/errors"
)

// FilesystemStore keeps objects under a root directory, one file per key.
type FilesystemStore struct {
	root          string
	publicBaseURL string
}

var _ Store = (*FilesystemStore)(nil)

// NewFilesystemStore creates the store, making the root directory if needed.
func NewFilesystemStore(root, publicBaseURL string) (*FilesystemStore, error) {
	if root == "" {
		return nil, errors.BadRequest("storage root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.Wrap(err, "failed to create storage root")
	}
	return &FilesystemStore{
		root:          root,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (s *FilesystemStore) Put(ctx context.Context, key string, r io.Reader) (*ObjectInfo, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errors.Wrap(err, "failed to create object directory")
	}

	// Write to a temp file first so a failed upload never leaves a
	// truncated object under the final key.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		tmp.Close()
		return nil, errors.Wrap(err, "failed to write object")
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to flush object")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, errors.Wrap(err, "failed to finalize object")
	}

	return &ObjectInfo{
		Key:    key,
		Size:   size,
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func (s *FilesystemStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil, errors.NotFound("object", key)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open object")
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrap(err, "failed to stat object")
	}

	return f, &ObjectInfo{Key: key, Size: stat.Size()}, nil
}

func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete object")
	}
	return nil
}

func (s *FilesystemStore) URL(key string) string {
	return s.publicBaseURL + "/" + key
}

// resolve validates the key and maps it onto the root directory. Keys must
// stay inside the root; rejecting cleaned escapes blocks path traversal.
func (s *FilesystemStore) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", errors.BadRequest("invalid object key")
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", errors.BadRequest("invalid object key")
	}
	return filepath.Join(s.root, cleaned), nil
}
