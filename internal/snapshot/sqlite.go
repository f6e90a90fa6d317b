package snapshot

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ziadkadry99/semstore/internal/embed"
	"github.com/ziadkadry99/semstore/internal/store"
)

// SQLiteCodec stores a snapshot as a single SQLite database file. Vectors are
// packed as little-endian float32 blobs; metadata is stored as JSON text.
type SQLiteCodec struct{}

const sqliteSchema = `
CREATE TABLE stores (
    position   INTEGER NOT NULL,
    name       TEXT NOT NULL UNIQUE,
    id         TEXT NOT NULL,
    dimension  INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    metadata   TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE documents (
    store_name TEXT NOT NULL REFERENCES stores(name),
    position   INTEGER NOT NULL,
    id         TEXT NOT NULL,
    text       TEXT NOT NULL,
    metadata   TEXT NOT NULL DEFAULT '{}',
    vector     BLOB NOT NULL,
    UNIQUE(store_name, id)
);

CREATE INDEX idx_documents_store ON documents(store_name, position);
`

// Save writes the snapshot into a temporary file and renames it over the
// destination once complete.
func (SQLiteCodec) Save(reg *store.Registry, path string) error {
	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing temp snapshot: %w", err)
	}

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return fmt.Errorf("opening snapshot database: %w", err)
	}
	if err := writeSQLite(db, reg); err != nil {
		db.Close()
		os.Remove(tmp)
		return err
	}
	if err := db.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing snapshot database: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("activating snapshot: %w", err)
	}
	return nil
}

func writeSQLite(db *sql.DB, reg *store.Registry) error {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("creating snapshot schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	pos := 0
	for name := range reg.Names() {
		s, err := reg.Get(name)
		if err != nil {
			return err
		}
		sm, err := json.Marshal(s.Metadata())
		if err != nil {
			return fmt.Errorf("encoding metadata for %q: %w", name, err)
		}
		_, err = tx.Exec(`INSERT INTO stores (position, name, id, dimension, created_at, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
			pos, s.Name(), s.ID(), s.Dimension(), s.CreatedAt().Format(time.RFC3339), string(sm))
		if err != nil {
			return fmt.Errorf("writing store %q: %w", name, err)
		}
		pos++

		for i, doc := range s.Documents() {
			md, err := json.Marshal(doc.Metadata)
			if err != nil {
				return fmt.Errorf("encoding metadata for %q/%q: %w", name, doc.ID, err)
			}
			_, err = tx.Exec(`INSERT INTO documents (store_name, position, id, text, metadata, vector) VALUES (?, ?, ?, ?, ?, ?)`,
				name, i, doc.ID, doc.Text, string(md), encodeVector(doc.Vector))
			if err != nil {
				return fmt.Errorf("writing document %q/%q: %w", name, doc.ID, err)
			}
		}
	}

	return tx.Commit()
}

// Load reads a snapshot database written by Save.
func (SQLiteCodec) Load(path string, factory embed.Factory) (*store.Registry, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: snapshot %s does not exist", store.ErrNotFound, path)
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: opening snapshot database: %v", store.ErrCorruptSnapshot, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT name, id, dimension, created_at, metadata FROM stores ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%w: reading stores: %v", store.ErrCorruptSnapshot, err)
	}
	defer rows.Close()

	var metas []storeMeta
	for rows.Next() {
		var meta storeMeta
		var created, md string
		if err := rows.Scan(&meta.Name, &meta.ID, &meta.Dimension, &created, &md); err != nil {
			return nil, fmt.Errorf("%w: scanning store row: %v", store.ErrCorruptSnapshot, err)
		}
		if meta.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("%w: store %q has bad created_at %q", store.ErrCorruptSnapshot, meta.Name, created)
		}
		if err := json.Unmarshal([]byte(md), &meta.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata of store %q: %v", store.ErrCorruptSnapshot, meta.Name, err)
		}
		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading stores: %v", store.ErrCorruptSnapshot, err)
	}

	reg := store.NewRegistry(factory)
	for _, meta := range metas {
		recs, err := loadDocs(db, meta.Name)
		if err != nil {
			return nil, err
		}
		docs, err := validateRecords(meta.Name, meta.Dimension, recs)
		if err != nil {
			return nil, err
		}
		meta.Count = len(docs)
		if err := restore(reg, meta, docs); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func loadDocs(db *sql.DB, storeName string) ([]docRecord, error) {
	rows, err := db.Query(`SELECT id, text, metadata, vector FROM documents WHERE store_name = ? ORDER BY position`, storeName)
	if err != nil {
		return nil, fmt.Errorf("%w: reading documents of %q: %v", store.ErrCorruptSnapshot, storeName, err)
	}
	defer rows.Close()

	var recs []docRecord
	for rows.Next() {
		var rec docRecord
		var md string
		var blob []byte
		if err := rows.Scan(&rec.ID, &rec.Text, &md, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning document row of %q: %v", store.ErrCorruptSnapshot, storeName, err)
		}
		if err := json.Unmarshal([]byte(md), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata of %q/%q: %v", store.ErrCorruptSnapshot, storeName, rec.ID, err)
		}
		if rec.Vector, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("%w: vector of %q/%q: %v", store.ErrCorruptSnapshot, storeName, rec.ID, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading documents of %q: %v", store.ErrCorruptSnapshot, storeName, err)
	}
	return recs, nil
}

// encodeVector packs a vector as little-endian float32 bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
