package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps each entry as a file under a single directory. Writes go
// through a temp file and a rename so readers never observe a partial entry.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the directory when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = ".cache"
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, filepath.Base(key))
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss{Key: key}
		}
		return nil, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	return data, nil
}

func (f *FileStore) Set(ctx context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, filepath.Base(key)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move cache file into place: %w", err)
	}
	return nil
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

func (f *FileStore) Close() error {
	return nil
}
