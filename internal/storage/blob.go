package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore holds uploaded bytes. The metadata core never sees it; the API
// writes and streams blobs and the classification job reads a bounded head.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Head(ctx context.Context, key string, n int64) ([]byte, error)
}

// DiskBlobs stores blobs as files under a root directory.
type DiskBlobs struct {
	root string
}

// NewDiskBlobs creates the root directory if needed.
func NewDiskBlobs(root string) (*DiskBlobs, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &DiskBlobs{root: root}, nil
}

func (d *DiskBlobs) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(d.root, clean), nil
}

// Put copies r into the blob at key.
func (d *DiskBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create blob parent: %w", err)
	}
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(path)
		return fmt.Errorf("write blob: %w", err)
	}
	return dst.Close()
}

// Open streams the blob at key.
func (d *DiskBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

// Head returns at most n leading bytes of the blob at key.
func (d *DiskBlobs) Head(ctx context.Context, key string, n int64) ([]byte, error) {
	rc, err := d.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	buf, err := io.ReadAll(io.LimitReader(rc, n))
	if err != nil {
		return nil, fmt.Errorf("read blob head: %w", err)
	}
	return buf, nil
}
