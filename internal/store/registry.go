package store

import (
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/ziadkadry99/semstore/internal/embed"
)

// Registry owns a set of uniquely named document stores. The embedder factory
// is fixed at construction; every store created through the registry gets an
// embedder for its own dimension from that factory, so backend selection
// happens exactly once.
type Registry struct {
	newEmbedder embed.Factory

	mu     sync.RWMutex
	stores map[string]*DocumentStore
	order  []string // names in creation order
}

// NewRegistry returns an empty registry whose stores will embed through
// embedders produced by factory.
func NewRegistry(factory embed.Factory) *Registry {
	return &Registry{
		newEmbedder: factory,
		stores:      make(map[string]*DocumentStore),
	}
}

// Create adds a new empty store with optional store-level metadata. It fails
// with ErrDuplicateName if the name is taken and ErrInvalidArgument for an
// empty name, non-positive dimension, or non-scalar metadata.
func (r *Registry) Create(name string, dim int, meta Metadata) (*DocumentStore, error) {
	const op = "create"
	if name == "" {
		return nil, opErr(op, name, fmt.Errorf("%w: empty store name", ErrInvalidArgument))
	}
	if dim < 1 {
		return nil, opErr(op, name, fmt.Errorf("%w: dimension %d, must be >= 1", ErrInvalidArgument, dim))
	}
	md, err := normalizeMetadata(meta)
	if err != nil {
		return nil, opErr(op, name, err)
	}

	embedder, err := r.newEmbedder(dim)
	if err != nil {
		return nil, opErr(op, name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stores[name]; exists {
		return nil, opErr(op, name, ErrDuplicateName)
	}
	s := newDocumentStore(name, dim, md, embedder)
	r.stores[name] = s
	r.order = append(r.order, name)
	return s, nil
}

// GetOrCreate returns the existing store under name, or creates it. An
// existing store must match the requested dimension.
func (r *Registry) GetOrCreate(name string, dim int) (*DocumentStore, error) {
	r.mu.RLock()
	s, ok := r.stores[name]
	r.mu.RUnlock()
	if ok {
		if s.dim != dim {
			return nil, opErr("get-or-create", name,
				fmt.Errorf("%w: store has dimension %d, requested %d", ErrInvalidArgument, s.dim, dim))
		}
		return s, nil
	}
	s, err := r.Create(name, dim, nil)
	if err == nil {
		return s, nil
	}
	// Lost a race with a concurrent creator; fall back to the winner.
	if r2, ok := r.get(name); ok && r2.dim == dim {
		return r2, nil
	}
	return nil, err
}

// Get returns the store under name, or ErrNotFound.
func (r *Registry) Get(name string) (*DocumentStore, error) {
	s, ok := r.get(name)
	if !ok {
		return nil, opErr("get", name, ErrNotFound)
	}
	return s, nil
}

func (r *Registry) get(name string) (*DocumentStore, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	return s, ok
}

// ModifyRequest describes a partial store update. Nil fields are left
// untouched; a non-nil Metadata replaces the store metadata wholesale.
type ModifyRequest struct {
	Name     *string
	Metadata *Metadata
}

// Modify renames a store and/or replaces its store-level metadata. A rename
// keeps the store's creation-order position, id, and documents; it fails with
// ErrDuplicateName if the new name is taken.
func (r *Registry) Modify(name string, req ModifyRequest) error {
	const op = "modify"
	var md Metadata
	if req.Metadata != nil {
		var err error
		if md, err = normalizeMetadata(*req.Metadata); err != nil {
			return opErr(op, name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[name]
	if !ok {
		return opErr(op, name, ErrNotFound)
	}

	if req.Name != nil && *req.Name != name {
		newName := *req.Name
		if newName == "" {
			return opErr(op, name, fmt.Errorf("%w: empty store name", ErrInvalidArgument))
		}
		if _, taken := r.stores[newName]; taken {
			return opErr(op, newName, ErrDuplicateName)
		}
		delete(r.stores, name)
		r.stores[newName] = s
		for i, n := range r.order {
			if n == name {
				r.order[i] = newName
				break
			}
		}
		s.rename(newName)
	}
	if req.Metadata != nil {
		s.setMetadata(md)
	}
	return nil
}

// Delete removes the store and all its documents. Irreversible; fails with
// ErrNotFound if the name is absent.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[name]; !ok {
		return opErr("delete", name, ErrNotFound)
	}
	delete(r.stores, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Names yields store names in creation order. The sequence is restartable:
// each range over it re-reads the registry.
func (r *Registry) Names() iter.Seq[string] {
	return func(yield func(string) bool) {
		r.mu.RLock()
		names := make([]string, len(r.order))
		copy(names, r.order)
		r.mu.RUnlock()
		for _, n := range names {
			if !yield(n) {
				return
			}
		}
	}
}

// Len returns the number of stores.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}

// Restore recreates a store from snapshot data: identity and documents are
// taken as-is, with no re-embedding. Document order defines insertion order.
// Used by the persistence layer; validation of vector lengths against dim is
// the caller's job (it decides between ErrCorruptSnapshot and acceptance).
func (r *Registry) Restore(name, id string, dim int, createdAt time.Time, meta Metadata, docs []Document) error {
	const op = "restore"
	if name == "" || dim < 1 {
		return opErr(op, name, fmt.Errorf("%w: empty name or dimension %d", ErrInvalidArgument, dim))
	}
	md, err := normalizeMetadata(meta)
	if err != nil {
		return opErr(op, name, err)
	}
	embedder, err := r.newEmbedder(dim)
	if err != nil {
		return opErr(op, name, err)
	}

	s := newDocumentStore(name, dim, md, embedder)
	if id != "" {
		s.id = id
	}
	if !createdAt.IsZero() {
		s.createdAt = createdAt
	}
	for i := range docs {
		d := docs[i]
		md, err := normalizeMetadata(d.Metadata)
		if err != nil {
			return opErr(op, name, err)
		}
		s.insertLocked(&Document{ID: d.ID, Text: d.Text, Metadata: md, Vector: d.Vector})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stores[name]; exists {
		return opErr(op, name, ErrDuplicateName)
	}
	r.stores[name] = s
	r.order = append(r.order, name)
	return nil
}
