package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ziadkadry99/semstore/internal/embed"
)

// fixtureEmbedder maps known texts to fixed vectors so ranking tests are
// unambiguous. Unknown texts get a distinct constant vector.
type fixtureEmbedder struct {
	dims    int
	vectors map[string][]float32
}

func (f *fixtureEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
			continue
		}
		v := make([]float32, f.dims)
		v[f.dims-1] = 1
		out[i] = v
	}
	return out, nil
}

func (f *fixtureEmbedder) Dimensions() int { return f.dims }
func (f *fixtureEmbedder) Name() string    { return "fixture" }

// failingEmbedder simulates an unreachable remote backend.
type failingEmbedder struct{ dims int }

func (f *failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: connection refused", embed.ErrProviderUnavailable)
}
func (f *failingEmbedder) Dimensions() int { return f.dims }
func (f *failingEmbedder) Name() string    { return "failing" }

func localFactory(dim int) (embed.Embedder, error) {
	return embed.NewLocalEmbedder(dim), nil
}

func newTestStore(t *testing.T, dim int) *DocumentStore {
	t.Helper()
	reg := NewRegistry(localFactory)
	s, err := reg.Create("test", dim, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func TestAddAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 16)

	meta := Metadata{"policy_type": "hotels", "max_spend": 300, "active": true}
	if err := s.Add(ctx, "hotel_policy_01", "hotels up to $250 per night", meta); err != nil {
		t.Fatalf("Add: %v", err)
	}

	doc, err := s.Get("hotel_policy_01")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Text != "hotels up to $250 per night" {
		t.Errorf("text: got %q", doc.Text)
	}
	if len(doc.Vector) != 16 {
		t.Errorf("vector length: got %d, want 16", len(doc.Vector))
	}
	if doc.Metadata["policy_type"] != "hotels" {
		t.Errorf("metadata policy_type: got %v", doc.Metadata["policy_type"])
	}
	// Integers normalize to float64, like a JSON round-trip would.
	if doc.Metadata["max_spend"] != float64(300) {
		t.Errorf("metadata max_spend: got %v (%T)", doc.Metadata["max_spend"], doc.Metadata["max_spend"])
	}
	if doc.Metadata["active"] != true {
		t.Errorf("metadata active: got %v", doc.Metadata["active"])
	}
}

func TestAddDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 8)

	if err := s.Add(ctx, "a", "original text", Metadata{"v": 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := s.Add(ctx, "a", "replacement text", Metadata{"v": 2})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	// The original document must be untouched.
	doc, err := s.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Text != "original text" {
		t.Errorf("text after failed add: got %q", doc.Text)
	}
	if doc.Metadata["v"] != float64(1) {
		t.Errorf("metadata after failed add: got %v", doc.Metadata["v"])
	}
}

func TestAddInvalidArguments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 8)

	if err := s.Add(ctx, "", "text", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty id: expected ErrInvalidArgument, got %v", err)
	}
	err := s.Add(ctx, "x", "text", Metadata{"nested": map[string]any{"a": 1}})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nested metadata: expected ErrInvalidArgument, got %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("store mutated by failed adds: %d documents", s.Count())
	}
}

func TestDeleteNotIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 8)

	if err := s.Add(ctx, "a", "some text", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestMetadataOnlyUpdateKeepsVector(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 32)

	if err := s.Add(ctx, "a", "stable text", Metadata{"rev": 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	before, _ := s.Get("a")

	meta := Metadata{"rev": 2}
	if err := s.Update(ctx, "a", UpdateRequest{Metadata: &meta}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	after, _ := s.Get("a")
	if after.Metadata["rev"] != float64(2) {
		t.Errorf("metadata not updated: %v", after.Metadata["rev"])
	}
	if len(before.Vector) != len(after.Vector) {
		t.Fatalf("vector length changed: %d -> %d", len(before.Vector), len(after.Vector))
	}
	for i := range before.Vector {
		if before.Vector[i] != after.Vector[i] {
			t.Fatalf("vector changed at index %d: %v -> %v", i, before.Vector[i], after.Vector[i])
		}
	}
}

func TestUpdateReembedsOnTextChange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 32)

	if err := s.Add(ctx, "a", "first version", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	before, _ := s.Get("a")

	text := "a completely different second version"
	if err := s.Update(ctx, "a", UpdateRequest{Text: &text}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	after, _ := s.Get("a")
	if after.Text != text {
		t.Errorf("text not updated: %q", after.Text)
	}

	same := true
	for i := range before.Vector {
		if before.Vector[i] != after.Vector[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("vector unchanged after text change")
	}
}

func TestUpdateMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 8)
	text := "whatever"
	err := s.Update(ctx, "ghost", UpdateRequest{Text: &text})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 8)

	if err := s.Upsert(ctx, "a", "v1", Metadata{"rev": 1}); err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}
	if err := s.Upsert(ctx, "a", "v2", Metadata{"rev": 2}); err != nil {
		t.Fatalf("Upsert replace: %v", err)
	}
	doc, err := s.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Text != "v2" || doc.Metadata["rev"] != float64(2) {
		t.Errorf("upsert did not replace: %q %v", doc.Text, doc.Metadata)
	}
	if s.Count() != 1 {
		t.Errorf("Count: got %d, want 1", s.Count())
	}
}

func newFixtureStore(t *testing.T, vectors map[string][]float32, dims int) *DocumentStore {
	t.Helper()
	reg := NewRegistry(func(dim int) (embed.Embedder, error) {
		return &fixtureEmbedder{dims: dim, vectors: vectors}, nil
	})
	s, err := reg.Create("fixture", dims, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func TestQueryRanking(t *testing.T) {
	ctx := context.Background()

	// Fixture vectors: "hotel budget" is close to the query, "lunch menu"
	// is orthogonal to it.
	vectors := map[string][]float32{
		"hotel budget":    {1, 0.2, 0, 0, 0, 0, 0, 0},
		"lunch menu":      {0, 0, 1, 0.3, 0, 0, 0, 0},
		"spending limits": {1, 0, 0, 0, 0, 0, 0, 0},
	}
	s := newFixtureStore(t, vectors, 8)

	if err := s.Add(ctx, "a", "hotel budget", nil); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	if err := s.Add(ctx, "b", "lunch menu", nil); err != nil {
		t.Fatalf("Add b: %v", err)
	}

	results, err := s.Query(ctx, "spending limits", 1, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Document.ID != "a" {
		t.Errorf("top result: got %q, want \"a\"", results[0].Document.ID)
	}
}

func TestQueryOrderAndTieBreak(t *testing.T) {
	ctx := context.Background()

	// "second" and "third" tie exactly; "first" scores lower. The tie must
	// resolve by insertion order.
	vectors := map[string][]float32{
		"query": {1, 0, 0, 0},
		"t1":    {0.5, 0.5, 0, 0},
		"t2":    {1, 0, 0, 0},
		"t3":    {2, 0, 0, 0}, // same direction as t2, same cosine
	}
	s := newFixtureStore(t, vectors, 4)

	for _, id := range []string{"low", "tie1", "tie2"} {
		text := map[string]string{"low": "t1", "tie1": "t2", "tie2": "t3"}[id]
		if err := s.Add(ctx, id, text, nil); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
	}

	results, err := s.Query(ctx, "query", 10, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	got := make([]string, len(results))
	for i, r := range results {
		got[i] = r.Document.ID
	}
	want := []string{"tie1", "tie2", "low"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: got %v, want %v", got, want)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("similarity not non-increasing at %d: %v", i, results)
		}
	}
}

func TestQueryLimits(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 8)

	for i := 0; i < 3; i++ {
		if err := s.Add(ctx, fmt.Sprintf("d%d", i), fmt.Sprintf("document number %d", i), nil); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	// k = 0 returns an empty slice regardless of contents.
	results, err := s.Query(ctx, "document", 0, nil)
	if err != nil {
		t.Fatalf("Query k=0: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("k=0: got %d results", len(results))
	}

	// k larger than the store returns everything.
	results, err = s.Query(ctx, "document", 100, nil)
	if err != nil {
		t.Fatalf("Query k=100: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("k=100: got %d results, want 3", len(results))
	}

	// Negative k is rejected.
	if _, err := s.Query(ctx, "document", -1, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("k=-1: expected ErrInvalidArgument, got %v", err)
	}
}

func TestQueryMetadataFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 16)

	docs := []struct {
		id   string
		text string
		meta Metadata
	}{
		{"f1", "economy class domestic flights", Metadata{"policy_type": "flights", "portal": true}},
		{"f2", "book through the company portal", Metadata{"policy_type": "flights", "portal": false}},
		{"h1", "hotels up to a nightly maximum", Metadata{"policy_type": "hotels"}},
	}
	for _, d := range docs {
		if err := s.Add(ctx, d.id, d.text, d.meta); err != nil {
			t.Fatalf("Add %s: %v", d.id, err)
		}
	}

	results, err := s.Query(ctx, "flights", 10, Metadata{"policy_type": "flights"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("filter policy_type=flights: got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Document.Metadata["policy_type"] != "flights" {
			t.Errorf("filtered result has policy_type %v", r.Document.Metadata["policy_type"])
		}
	}

	// Conjunction across keys.
	results, err = s.Query(ctx, "flights", 10, Metadata{"policy_type": "flights", "portal": true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].Document.ID != "f1" {
		t.Errorf("conjunctive filter: got %v", results)
	}
}

func TestProviderFailureLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(func(dim int) (embed.Embedder, error) {
		return &failingEmbedder{dims: dim}, nil
	})
	s, err := reg.Create("remote", 8, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.Add(ctx, "a", "text", nil); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("store mutated by failed add: %d documents", s.Count())
	}
	if _, err := s.Query(ctx, "text", 5, nil); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("query: expected ErrProviderUnavailable, got %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIDsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 8)

	for _, id := range []string{"c", "a", "b"} {
		if err := s.Add(ctx, id, "text for "+id, nil); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	ids := s.IDs()
	want := []string{"c", "a", "b"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IDs: got %v, want %v", ids, want)
		}
	}
}
