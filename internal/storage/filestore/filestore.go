// Package filestore persists ledger artifacts as plain JSON files, one per
// key. Useful for inspecting outputs and for diffing runs by hand.
package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FileStore is a directory-of-JSON-files Store implementation.
type FileStore struct {
	dir string
}

// New creates the directory if needed and returns a store over it.
func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create store directory %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	// Keys may contain separators like "tax_rows/2024"; flatten them.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, safe+".json")
}

// Save writes the value as indented JSON, atomically via a temp file.
func (s *FileStore) Save(key string, value any) error {
	if key == "" {
		return errors.New("store key is required")
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshal value for key %s", key)
	}

	target := s.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := os.Rename(tmp, target); err != nil {
		return errors.Wrapf(err, "rename %s", target)
	}
	return nil
}

// Load reads the file for key; missing files report ok=false.
func (s *FileStore) Load(key string, out any) (bool, error) {
	payload, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "read value for key %s", key)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, errors.Wrapf(err, "decode value for key %s", key)
	}
	return true, nil
}

// Close is a no-op for the filesystem backend.
func (s *FileStore) Close() error { return nil }
