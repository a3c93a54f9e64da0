package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/mediabot/internal/media"
)

// JSONFileStore keeps the collection as one indented JSON array, the format
// the bot has always written to media_data.json.
type JSONFileStore struct {
	path string
}

func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &JSONFileStore{path: path}, nil
}

// Path returns the file the collection is written to.
func (s *JSONFileStore) Path() string {
	return s.path
}

// Load reads the collection. A missing (or blank) file is an empty collection.
func (s *JSONFileStore) Load(ctx context.Context) ([]media.Record, error) {
	data, err := os.ReadFile(s.path) // #nosec G304
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []media.Record{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []media.Record{}, nil
	}

	var records []media.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return normalize(records)
}

// Save writes the collection to a temp file in the same directory and renames
// it over the target, so readers see either the old or the new file.
func (s *JSONFileStore) Save(ctx context.Context, records []media.Record) error {
	out := make([]media.Record, len(records))
	for i, r := range records {
		if r.Tags == nil {
			r.Tags = []string{}
		}
		out[i] = r
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal media collection: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	committed = true

	syncDir(dir)
	return nil
}

func (s *JSONFileStore) Close() error {
	return nil
}

// syncDir flushes the rename to disk where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir) // #nosec G304
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
