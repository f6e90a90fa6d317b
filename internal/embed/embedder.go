package embed

import (
	"context"
	"errors"
)

// ErrProviderUnavailable is returned when an embedding backend is
// unreachable, misconfigured, or times out.
var ErrProviderUnavailable = errors.New("embedding provider unavailable")

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts, one vector per text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding backend.
	Name() string
}

// Factory builds an Embedder producing vectors of the given dimension. A
// factory that cannot serve the dimension returns an error.
type Factory func(dim int) (Embedder, error)
