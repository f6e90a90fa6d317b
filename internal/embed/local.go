package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalEmbedder produces deterministic embeddings without any model or
// network call: each lowercased token is hashed into a bucket of the output
// vector, and the result is L2-normalized. The same text yields a
// bit-identical vector on every call, in every process, so texts sharing
// tokens score higher than unrelated ones. Quality is intentionally crude;
// this backend exists for offline use and reproducible tests.
type LocalEmbedder struct {
	dims int
}

// NewLocalEmbedder creates a local embedder with the given output dimension.
func NewLocalEmbedder(dims int) *LocalEmbedder {
	return &LocalEmbedder{dims: dims}
}

func (e *LocalEmbedder) Name() string { return "local" }

func (e *LocalEmbedder) Dimensions() int { return e.dims }

func (e *LocalEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		results[i] = e.vector(text)
	}
	return results, nil
}

func (e *LocalEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dims)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.dims)] += 1.0
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := 1.0 / math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) * inv)
		}
	}
	return vec
}

// tokenize splits on anything that is not a letter or digit and lowercases.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
