// Package snapshot serializes a store registry to disk and back. Two codecs
// share one contract: Save writes a complete snapshot atomically, and Load
// either reconstructs a structurally identical registry or fails with
// ErrCorruptSnapshot. Loading a path that does not exist fails with
// ErrNotFound.
package snapshot

import (
	"fmt"
	"time"

	"github.com/ziadkadry99/semstore/internal/embed"
	"github.com/ziadkadry99/semstore/internal/store"
)

// Codec saves and loads registry snapshots in one on-disk format.
type Codec interface {
	// Save writes a full snapshot of reg to path, replacing any previous
	// snapshot only once the new one is completely written.
	Save(reg *store.Registry, path string) error

	// Load reconstructs a registry from path. The factory supplies
	// embedders for the restored stores.
	Load(path string, factory embed.Factory) (*store.Registry, error)
}

// New returns the codec for the named format: "dir" or "sqlite".
func New(format string) (Codec, error) {
	switch format {
	case "", "dir":
		return DirCodec{}, nil
	case "sqlite":
		return SQLiteCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
}

// docRecord is the serialized form of one document in a store file.
type docRecord struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata store.Metadata `json:"metadata,omitempty"`
	Vector   []float32      `json:"vector"`
}

func toRecords(docs []store.Document) []docRecord {
	recs := make([]docRecord, len(docs))
	for i, d := range docs {
		recs[i] = docRecord{ID: d.ID, Text: d.Text, Metadata: d.Metadata, Vector: d.Vector}
	}
	return recs
}

// validateRecords checks the structural invariants shared by both codecs:
// non-empty unique ids and vectors matching the declared dimension.
func validateRecords(storeName string, dim int, recs []docRecord) ([]store.Document, error) {
	seen := make(map[string]bool, len(recs))
	docs := make([]store.Document, len(recs))
	for i, rec := range recs {
		if rec.ID == "" {
			return nil, fmt.Errorf("%w: store %q has a document with an empty id",
				store.ErrCorruptSnapshot, storeName)
		}
		if seen[rec.ID] {
			return nil, fmt.Errorf("%w: store %q has duplicate document id %q",
				store.ErrCorruptSnapshot, storeName, rec.ID)
		}
		seen[rec.ID] = true
		if len(rec.Vector) != dim {
			return nil, fmt.Errorf("%w: store %q document %q has %d-dimensional vector, declared dimension is %d",
				store.ErrCorruptSnapshot, storeName, rec.ID, len(rec.Vector), dim)
		}
		docs[i] = store.Document{ID: rec.ID, Text: rec.Text, Metadata: rec.Metadata, Vector: rec.Vector}
	}
	return docs, nil
}

// storeMeta is the per-store identity carried by both formats.
type storeMeta struct {
	Name      string
	ID        string
	Dimension int
	CreatedAt time.Time
	Count     int
	Metadata  store.Metadata
}

func restore(reg *store.Registry, meta storeMeta, docs []store.Document) error {
	if meta.Name == "" {
		return fmt.Errorf("%w: store with empty name", store.ErrCorruptSnapshot)
	}
	if meta.Dimension < 1 {
		return fmt.Errorf("%w: store %q has dimension %d", store.ErrCorruptSnapshot, meta.Name, meta.Dimension)
	}
	if meta.Count != len(docs) {
		return fmt.Errorf("%w: store %q declares %d documents but contains %d",
			store.ErrCorruptSnapshot, meta.Name, meta.Count, len(docs))
	}
	if err := reg.Restore(meta.Name, meta.ID, meta.Dimension, meta.CreatedAt, meta.Metadata, docs); err != nil {
		return fmt.Errorf("%w: %v", store.ErrCorruptSnapshot, err)
	}
	return nil
}
