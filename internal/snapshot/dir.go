package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/semstore/internal/embed"
	"github.com/ziadkadry99/semstore/internal/store"
)

const manifestFile = "manifest.yaml"

// DirCodec stores a snapshot as a directory: a manifest listing every store
// plus one JSON document file per store, named after the store's id so
// arbitrary store names stay filesystem-safe.
type DirCodec struct{}

type manifest struct {
	Version int             `yaml:"version"`
	Stores  []manifestEntry `yaml:"stores"`
}

type manifestEntry struct {
	Name      string         `yaml:"name"`
	ID        string         `yaml:"id"`
	Dimension int            `yaml:"dimension"`
	CreatedAt time.Time      `yaml:"created_at"`
	File      string         `yaml:"file"`
	Count     int            `yaml:"count"`
	Metadata  store.Metadata `yaml:"metadata,omitempty"`
}

// Save writes the snapshot into a temporary sibling directory and swaps it
// into place with renames, so a crash mid-write never corrupts the previous
// snapshot.
func (DirCodec) Save(reg *store.Registry, path string) error {
	tmp := path + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("clearing temp snapshot dir: %w", err)
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return fmt.Errorf("creating temp snapshot dir: %w", err)
	}

	var m manifest
	m.Version = 1
	for name := range reg.Names() {
		s, err := reg.Get(name)
		if err != nil {
			return err
		}
		fileName := s.ID() + ".json"
		docs := s.Documents()

		data, err := json.MarshalIndent(toRecords(docs), "", "  ")
		if err != nil {
			return fmt.Errorf("encoding store %q: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(tmp, fileName), data, 0o644); err != nil {
			return fmt.Errorf("writing store %q: %w", name, err)
		}

		m.Stores = append(m.Stores, manifestEntry{
			Name:      s.Name(),
			ID:        s.ID(),
			Dimension: s.Dimension(),
			CreatedAt: s.CreatedAt(),
			File:      fileName,
			Count:     len(docs),
			Metadata:  s.Metadata(),
		})
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, manifestFile), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	// Swap: move the old snapshot aside, rename the new one in, then discard
	// the old. Each step is a single rename, so at no point is the previous
	// snapshot half-overwritten.
	old := path + ".old"
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("clearing previous snapshot backup: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, old); err != nil {
			return fmt.Errorf("moving previous snapshot aside: %w", err)
		}
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("activating snapshot: %w", err)
	}
	return os.RemoveAll(old)
}

// Load reads a snapshot directory written by Save.
func (DirCodec) Load(path string, factory embed.Factory) (*store.Registry, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// A crash between Save's two renames leaves the previous snapshot at
		// the backup location with nothing at path. Fall back to the backup.
		old := path + ".old"
		if _, oldErr := os.Stat(old); oldErr == nil {
			path = old
		} else {
			return nil, fmt.Errorf("%w: snapshot %s does not exist", store.ErrNotFound, path)
		}
	}

	data, err := os.ReadFile(filepath.Join(path, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: reading manifest: %v", store.ErrCorruptSnapshot, err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest: %v", store.ErrCorruptSnapshot, err)
	}

	reg := store.NewRegistry(factory)
	for _, entry := range m.Stores {
		if entry.File == "" {
			return nil, fmt.Errorf("%w: store %q has no file", store.ErrCorruptSnapshot, entry.Name)
		}
		data, err := os.ReadFile(filepath.Join(path, entry.File))
		if err != nil {
			return nil, fmt.Errorf("%w: reading store %q: %v", store.ErrCorruptSnapshot, entry.Name, err)
		}
		var recs []docRecord
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("%w: parsing store %q: %v", store.ErrCorruptSnapshot, entry.Name, err)
		}

		docs, err := validateRecords(entry.Name, entry.Dimension, recs)
		if err != nil {
			return nil, err
		}
		meta := storeMeta{
			Name:      entry.Name,
			ID:        entry.ID,
			Dimension: entry.Dimension,
			CreatedAt: entry.CreatedAt,
			Count:     entry.Count,
			Metadata:  entry.Metadata,
		}
		if err := restore(reg, meta, docs); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
