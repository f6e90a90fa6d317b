package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/semstore/internal/embed"
)

// DocumentStore is a named collection of documents sharing one embedding
// dimension. All mutation goes through the store so the dimension invariant
// (every vector length equals the store dimension) always holds.
//
// A store is safe for concurrent use: writes take an exclusive lock, reads a
// shared one.
type DocumentStore struct {
	id        string
	dim       int
	createdAt time.Time
	embedder  embed.Embedder

	mu      sync.RWMutex
	name    string // mutable via Registry.Modify
	meta    Metadata
	docs    map[string]*Document
	nextSeq uint64
}

// Result pairs a document with its cosine similarity to a query.
type Result struct {
	Document   Document
	Similarity float32
}

func newDocumentStore(name string, dim int, meta Metadata, embedder embed.Embedder) *DocumentStore {
	return &DocumentStore{
		name:      name,
		id:        uuid.NewString(),
		dim:       dim,
		createdAt: time.Now().UTC().Truncate(time.Second),
		embedder:  embedder,
		meta:      meta,
		docs:      make(map[string]*Document),
	}
}

// Name returns the store's registry-unique name.
func (s *DocumentStore) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Metadata returns a copy of the store-level metadata.
func (s *DocumentStore) Metadata() Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.clone()
}

func (s *DocumentStore) rename(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func (s *DocumentStore) setMetadata(meta Metadata) {
	s.mu.Lock()
	s.meta = meta
	s.mu.Unlock()
}

// ID returns the store's stable identifier, assigned at creation and
// preserved across snapshots.
func (s *DocumentStore) ID() string { return s.id }

// Dimension returns the embedding dimension shared by all documents.
func (s *DocumentStore) Dimension() int { return s.dim }

// CreatedAt returns the store's creation time.
func (s *DocumentStore) CreatedAt() time.Time { return s.createdAt }

// Count returns the number of documents in the store.
func (s *DocumentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Add embeds text and inserts a new document. It fails with ErrDuplicateID if
// the id already exists and ErrInvalidArgument for an empty id or bad
// metadata. The store is left unchanged on any failure, including a provider
// failure: embedding happens before anything is written.
func (s *DocumentStore) Add(ctx context.Context, id, text string, meta Metadata) error {
	const op = "add"
	if id == "" {
		return opErr(op, id, fmt.Errorf("%w: empty document id", ErrInvalidArgument))
	}
	md, err := normalizeMetadata(meta)
	if err != nil {
		return opErr(op, id, err)
	}

	s.mu.RLock()
	_, exists := s.docs[id]
	s.mu.RUnlock()
	if exists {
		return opErr(op, id, ErrDuplicateID)
	}

	vec, err := s.embedOne(ctx, text)
	if err != nil {
		return opErr(op, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the write lock; a concurrent Add may have won the race.
	if _, exists := s.docs[id]; exists {
		return opErr(op, id, ErrDuplicateID)
	}
	s.insertLocked(&Document{ID: id, Text: text, Metadata: md, Vector: vec})
	return nil
}

// Upsert inserts the document if the id is new and replaces it otherwise.
// A replaced document keeps its insertion order.
func (s *DocumentStore) Upsert(ctx context.Context, id, text string, meta Metadata) error {
	const op = "upsert"
	if id == "" {
		return opErr(op, id, fmt.Errorf("%w: empty document id", ErrInvalidArgument))
	}
	md, err := normalizeMetadata(meta)
	if err != nil {
		return opErr(op, id, err)
	}
	vec, err := s.embedOne(ctx, text)
	if err != nil {
		return opErr(op, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.docs[id]; ok {
		existing.Text = text
		existing.Metadata = md
		existing.Vector = vec
		return nil
	}
	s.insertLocked(&Document{ID: id, Text: text, Metadata: md, Vector: vec})
	return nil
}

// Get returns a copy of the document, or ErrNotFound.
func (s *DocumentStore) Get(id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return Document{}, opErr("get", id, ErrNotFound)
	}
	return *doc.clone(), nil
}

// UpdateRequest describes a partial document update. Nil fields are left
// untouched.
type UpdateRequest struct {
	Text     *string
	Metadata *Metadata
}

// Update applies req to an existing document. The text is re-embedded only
// when it actually changes; a metadata-only update leaves the stored vector
// bit-identical. Fails with ErrNotFound if the id is absent.
func (s *DocumentStore) Update(ctx context.Context, id string, req UpdateRequest) error {
	const op = "update"

	var md Metadata
	if req.Metadata != nil {
		var err error
		if md, err = normalizeMetadata(*req.Metadata); err != nil {
			return opErr(op, id, err)
		}
	}

	s.mu.RLock()
	doc, ok := s.docs[id]
	var oldText string
	if ok {
		oldText = doc.Text
	}
	s.mu.RUnlock()
	if !ok {
		return opErr(op, id, ErrNotFound)
	}

	// Embed outside the write lock, and only if the text changed.
	var vec []float32
	reembed := req.Text != nil && *req.Text != oldText
	if reembed {
		var err error
		if vec, err = s.embedOne(ctx, *req.Text); err != nil {
			return opErr(op, id, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok = s.docs[id]
	if !ok {
		return opErr(op, id, ErrNotFound)
	}
	if reembed {
		doc.Text = *req.Text
		doc.Vector = vec
	}
	if req.Metadata != nil {
		doc.Metadata = md
	}
	return nil
}

// Delete removes the document. Deletion is not idempotent: deleting an id
// that is already gone fails with ErrNotFound.
func (s *DocumentStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return opErr("delete", id, ErrNotFound)
	}
	delete(s.docs, id)
	return nil
}

// Query embeds text and returns the top k documents by descending cosine
// similarity. The filter, if non-nil, is an exact-match conjunction applied
// before ranking. Ties are broken by ascending insertion order. k greater
// than the number of matches returns all matches; k == 0 returns an empty
// slice; k < 0 fails with ErrInvalidArgument.
func (s *DocumentStore) Query(ctx context.Context, text string, k int, filter Metadata) ([]Result, error) {
	const op = "query"
	if k < 0 {
		return nil, opErr(op, s.Name(), fmt.Errorf("%w: negative result count %d", ErrInvalidArgument, k))
	}
	if k == 0 {
		return []Result{}, nil
	}

	qvec, err := s.embedOne(ctx, text)
	if err != nil {
		return nil, opErr(op, s.Name(), err)
	}

	s.mu.RLock()
	candidates := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if doc.matches(filter) {
			candidates = append(candidates, doc)
		}
	}
	scores := make([]float32, len(candidates))
	for i, doc := range candidates {
		scores[i] = CosineSimilarity(qvec, doc.Vector)
	}
	s.mu.RUnlock()

	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if scores[ia] != scores[ib] {
			return scores[ia] > scores[ib]
		}
		return candidates[ia].seq < candidates[ib].seq
	})

	if k > len(idx) {
		k = len(idx)
	}
	results := make([]Result, k)
	for i := 0; i < k; i++ {
		results[i] = Result{
			Document:   *candidates[idx[i]].clone(),
			Similarity: scores[idx[i]],
		}
	}
	return results, nil
}

// IDs returns all document ids in insertion order.
func (s *DocumentStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idsLocked()
}

func (s *DocumentStore) idsLocked() []string {
	docs := make([]*Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

// Documents returns copies of all documents in insertion order. Used by the
// persistence layer and by list-style callers.
func (s *DocumentStore) Documents() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]*Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = *d.clone()
	}
	return out
}

func (s *DocumentStore) insertLocked(doc *Document) {
	doc.seq = s.nextSeq
	s.nextSeq++
	s.docs[doc.ID] = doc
}

// embedOne runs the store's embedder on a single text and enforces the
// dimension invariant on the way back.
func (s *DocumentStore) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: provider returned %d vectors, want 1", ErrProviderUnavailable, len(vecs))
	}
	if len(vecs[0]) != s.dim {
		return nil, fmt.Errorf("%w: provider returned %d-dimensional vector, want %d",
			ErrProviderUnavailable, len(vecs[0]), s.dim)
	}
	return vecs[0], nil
}

// CosineSimilarity computes dot(a,b) / (|a|*|b|). A zero vector is defined to
// have similarity 0 to everything, and mismatched lengths score 0 as well.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
