package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ziadkadry99/semstore/internal/embed"
	"github.com/ziadkadry99/semstore/internal/store"
)

func localFactory(dim int) (embed.Embedder, error) {
	return embed.NewLocalEmbedder(dim), nil
}

// buildRegistry creates a registry with two populated stores and one empty
// store, covering metadata scalars of every kind.
func buildRegistry(t *testing.T) *store.Registry {
	t.Helper()
	ctx := context.Background()
	reg := store.NewRegistry(localFactory)

	policies, err := reg.Create("travel_policies", 32, store.Metadata{"team": "finance", "version": 2.0})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	docs := []struct {
		id   string
		text string
		meta store.Metadata
	}{
		{"flight_policy_01", "economy class for domestic flights", store.Metadata{"policy_type": "flights"}},
		{"hotel_policy_01", "hotels up to $250 per night", store.Metadata{"policy_type": "hotels", "max_spend": 250.0}},
		{"portal_policy_01", "book through the travel portal", store.Metadata{"policy_type": "flights", "requires_portal": true}},
	}
	for _, d := range docs {
		if err := policies.Add(ctx, d.id, d.text, d.meta); err != nil {
			t.Fatalf("Add %s: %v", d.id, err)
		}
	}

	notes, err := reg.Create("notes", 8, nil)
	if err != nil {
		t.Fatalf("Create notes: %v", err)
	}
	if err := notes.Add(ctx, "n1", "a small note", nil); err != nil {
		t.Fatalf("Add n1: %v", err)
	}

	if _, err := reg.Create("empty", 4, nil); err != nil {
		t.Fatalf("Create empty: %v", err)
	}
	return reg
}

// assertEqual checks structural equality of two registries.
func assertEqual(t *testing.T, got, want *store.Registry) {
	t.Helper()
	if got.Len() != want.Len() {
		t.Fatalf("store count: got %d, want %d", got.Len(), want.Len())
	}

	var wantNames, gotNames []string
	for n := range want.Names() {
		wantNames = append(wantNames, n)
	}
	for n := range got.Names() {
		gotNames = append(gotNames, n)
	}
	for i := range wantNames {
		if gotNames[i] != wantNames[i] {
			t.Fatalf("store order: got %v, want %v", gotNames, wantNames)
		}
	}

	for _, name := range wantNames {
		ws, _ := want.Get(name)
		gs, err := got.Get(name)
		if err != nil {
			t.Fatalf("Get %s: %v", name, err)
		}
		if gs.ID() != ws.ID() {
			t.Errorf("%s: id %q != %q", name, gs.ID(), ws.ID())
		}
		if gs.Dimension() != ws.Dimension() {
			t.Errorf("%s: dimension %d != %d", name, gs.Dimension(), ws.Dimension())
		}
		if !gs.CreatedAt().Equal(ws.CreatedAt()) {
			t.Errorf("%s: created_at %v != %v", name, gs.CreatedAt(), ws.CreatedAt())
		}
		wm, gm := ws.Metadata(), gs.Metadata()
		if len(gm) != len(wm) {
			t.Errorf("%s: store metadata %v != %v", name, gm, wm)
		}
		for k, v := range wm {
			if gm[k] != v {
				t.Errorf("%s: store metadata[%s] %v != %v", name, k, gm[k], v)
			}
		}

		wd, gd := ws.Documents(), gs.Documents()
		if len(gd) != len(wd) {
			t.Fatalf("%s: document count %d != %d", name, len(gd), len(wd))
		}
		for i := range wd {
			if gd[i].ID != wd[i].ID || gd[i].Text != wd[i].Text {
				t.Errorf("%s doc %d: %q/%q != %q/%q", name, i, gd[i].ID, gd[i].Text, wd[i].ID, wd[i].Text)
			}
			if len(gd[i].Metadata) != len(wd[i].Metadata) {
				t.Errorf("%s doc %s: metadata %v != %v", name, wd[i].ID, gd[i].Metadata, wd[i].Metadata)
			}
			for k, v := range wd[i].Metadata {
				if gd[i].Metadata[k] != v {
					t.Errorf("%s doc %s: metadata[%s] %v != %v", name, wd[i].ID, k, gd[i].Metadata[k], v)
				}
			}
			if len(gd[i].Vector) != len(wd[i].Vector) {
				t.Fatalf("%s doc %s: vector length %d != %d", name, wd[i].ID, len(gd[i].Vector), len(wd[i].Vector))
			}
			for j := range wd[i].Vector {
				if gd[i].Vector[j] != wd[i].Vector[j] {
					t.Fatalf("%s doc %s: vector[%d] %v != %v", name, wd[i].ID, j, gd[i].Vector[j], wd[i].Vector[j])
				}
			}
		}
	}
}

func codecs() map[string]Codec {
	return map[string]Codec{
		"dir":    DirCodec{},
		"sqlite": SQLiteCodec{},
	}
}

func snapshotDest(t *testing.T, name string) string {
	if name == "sqlite" {
		return filepath.Join(t.TempDir(), "snapshot.db")
	}
	return filepath.Join(t.TempDir(), "snapshot")
}

func TestRoundTrip(t *testing.T) {
	for name, codec := range codecs() {
		t.Run(name, func(t *testing.T) {
			reg := buildRegistry(t)
			dest := snapshotDest(t, name)

			if err := codec.Save(reg, dest); err != nil {
				t.Fatalf("Save: %v", err)
			}
			loaded, err := codec.Load(dest, localFactory)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			assertEqual(t, loaded, reg)
		})
	}
}

func TestRoundTripEmptyRegistry(t *testing.T) {
	for name, codec := range codecs() {
		t.Run(name, func(t *testing.T) {
			reg := store.NewRegistry(localFactory)
			dest := snapshotDest(t, name)

			if err := codec.Save(reg, dest); err != nil {
				t.Fatalf("Save: %v", err)
			}
			loaded, err := codec.Load(dest, localFactory)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if loaded.Len() != 0 {
				t.Errorf("loaded %d stores from empty snapshot", loaded.Len())
			}
		})
	}
}

func TestLoadMissingPath(t *testing.T) {
	for name, codec := range codecs() {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Load(filepath.Join(t.TempDir(), "nope"), localFactory)
			if !errors.Is(err, store.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	for name, codec := range codecs() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			reg := buildRegistry(t)
			dest := snapshotDest(t, name)

			if err := codec.Save(reg, dest); err != nil {
				t.Fatalf("first Save: %v", err)
			}

			s, _ := reg.Get("notes")
			if err := s.Add(ctx, "n2", "a second note", nil); err != nil {
				t.Fatalf("Add: %v", err)
			}
			if err := codec.Save(reg, dest); err != nil {
				t.Fatalf("second Save: %v", err)
			}

			loaded, err := codec.Load(dest, localFactory)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			ls, _ := loaded.Get("notes")
			if ls.Count() != 2 {
				t.Errorf("notes count after resave: got %d, want 2", ls.Count())
			}
		})
	}
}

func TestDirLoadFallsBackToBackup(t *testing.T) {
	reg := buildRegistry(t)
	dest := filepath.Join(t.TempDir(), "snapshot")
	if err := (DirCodec{}).Save(reg, dest); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Simulate a crash between Save's two renames: the previous snapshot sits
	// at the backup location and nothing at the destination.
	if err := os.Rename(dest, dest+".old"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	loaded, err := (DirCodec{}).Load(dest, localFactory)
	if err != nil {
		t.Fatalf("Load after interrupted swap: %v", err)
	}
	assertEqual(t, loaded, reg)
}

func TestDirLoadCorruptManifest(t *testing.T) {
	reg := buildRegistry(t)
	dest := filepath.Join(t.TempDir(), "snapshot")
	if err := (DirCodec{}).Save(reg, dest); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dest, manifestFile), []byte("{not yaml: ["), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := (DirCodec{}).Load(dest, localFactory); !errors.Is(err, store.ErrCorruptSnapshot) {
		t.Errorf("expected ErrCorruptSnapshot, got %v", err)
	}
}

func TestDirLoadDimensionMismatch(t *testing.T) {
	reg := buildRegistry(t)
	dest := filepath.Join(t.TempDir(), "snapshot")
	if err := (DirCodec{}).Save(reg, dest); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Rewrite one store file so a document's vector disagrees with the
	// store's declared dimension.
	s, _ := reg.Get("notes")
	file := filepath.Join(dest, s.ID()+".json")
	recs := []docRecord{{ID: "n1", Text: "a small note", Vector: []float32{1, 2, 3}}}
	data, _ := json.Marshal(recs)
	if err := os.WriteFile(file, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := (DirCodec{}).Load(dest, localFactory); !errors.Is(err, store.ErrCorruptSnapshot) {
		t.Errorf("expected ErrCorruptSnapshot, got %v", err)
	}
}

func TestDirLoadMissingStoreFile(t *testing.T) {
	reg := buildRegistry(t)
	dest := filepath.Join(t.TempDir(), "snapshot")
	if err := (DirCodec{}).Save(reg, dest); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s, _ := reg.Get("travel_policies")
	if err := os.Remove(filepath.Join(dest, s.ID()+".json")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := (DirCodec{}).Load(dest, localFactory); !errors.Is(err, store.ErrCorruptSnapshot) {
		t.Errorf("expected ErrCorruptSnapshot, got %v", err)
	}
}

func TestDirLoadCountMismatch(t *testing.T) {
	reg := buildRegistry(t)
	dest := filepath.Join(t.TempDir(), "snapshot")
	if err := (DirCodec{}).Save(reg, dest); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Drop a document from a store file without touching the manifest count.
	s, _ := reg.Get("travel_policies")
	file := filepath.Join(dest, s.ID()+".json")
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var recs []docRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	data, _ = json.Marshal(recs[:len(recs)-1])
	if err := os.WriteFile(file, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := (DirCodec{}).Load(dest, localFactory); !errors.Is(err, store.ErrCorruptSnapshot) {
		t.Errorf("expected ErrCorruptSnapshot, got %v", err)
	}
}

func TestSQLiteLoadGarbageFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "snapshot.db")
	if err := os.WriteFile(dest, []byte("this is not a database"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := (SQLiteCodec{}).Load(dest, localFactory); !errors.Is(err, store.ErrCorruptSnapshot) {
		t.Errorf("expected ErrCorruptSnapshot, got %v", err)
	}
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0, 1, -1, 0.5, 3.1415927}
	decoded, err := decodeVector(encodeVector(vec))
	if err != nil {
		t.Fatalf("decodeVector: %v", err)
	}
	if len(decoded) != len(vec) {
		t.Fatalf("length: got %d, want %d", len(decoded), len(vec))
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Errorf("index %d: got %v, want %v", i, decoded[i], vec[i])
		}
	}

	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
