package localstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// slots is a directory-backed key-value store. Each key is one file holding
// an opaque value; Put replaces the value atomically.
type slots struct {
	dir string
}

func (s slots) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get returns the value stored under key. found is false when the key has
// never been written.
func (s slots) Get(key string) (value []byte, found bool, err error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading slot %s: %w", key, err)
	}
	return data, true, nil
}

// Put writes value under key using the temp-file, fsync, rename pattern, so
// readers observe either the old value or the new one.
func (s slots) Put(key string, value []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing slot %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing slot %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
