package store

import "fmt"

// Metadata holds the key/value annotations on a document. Values are
// restricted to a closed set of scalars so that filtering and snapshot
// round-trips stay well-defined: string, bool, or float64. Integers are
// normalized to float64 on the way in, matching how JSON decodes numbers.
type Metadata map[string]any

// Document is a single entry in a DocumentStore: the original text, its
// embedding vector, and free-form scalar metadata.
type Document struct {
	ID       string
	Text     string
	Metadata Metadata
	Vector   []float32

	// seq is the insertion sequence within the owning store, used to break
	// similarity ties deterministically. Not exposed; restored on load.
	seq uint64
}

// normalizeMetadata validates m and returns a copy with integer values
// converted to float64. A nil map normalizes to an empty one so stored
// documents never alias caller-owned maps.
func normalizeMetadata(m Metadata) (Metadata, error) {
	out := make(Metadata, len(m))
	for k, v := range m {
		if k == "" {
			return nil, fmt.Errorf("%w: empty metadata key", ErrInvalidArgument)
		}
		switch val := v.(type) {
		case string, bool, float64:
			out[k] = val
		case float32:
			out[k] = float64(val)
		case int:
			out[k] = float64(val)
		case int32:
			out[k] = float64(val)
		case int64:
			out[k] = float64(val)
		default:
			return nil, fmt.Errorf("%w: metadata key %q has non-scalar value %T", ErrInvalidArgument, k, v)
		}
	}
	return out, nil
}

// clone returns a shallow copy; values are scalars, so this is a deep copy.
func (m Metadata) clone() Metadata {
	cp := make(Metadata, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// matches reports whether the document's metadata satisfies every key/value
// pair in filter (exact-match conjunction). An empty or nil filter matches
// all documents.
func (d *Document) matches(filter Metadata) bool {
	for k, want := range filter {
		got, ok := d.Metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// clone returns a deep copy so callers can never mutate store-owned state.
func (d *Document) clone() *Document {
	cp := &Document{
		ID:       d.ID,
		Text:     d.Text,
		Metadata: d.Metadata.clone(),
		Vector:   make([]float32, len(d.Vector)),
		seq:      d.seq,
	}
	copy(cp.Vector, d.Vector)
	return cp
}
