package embed

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const maxBatchSize = 100

// OpenAIModel represents a supported OpenAI embedding model.
type OpenAIModel string

const (
	ModelTextEmbedding3Small OpenAIModel = "text-embedding-3-small"
	ModelTextEmbedding3Large OpenAIModel = "text-embedding-3-large"
)

// OpenAIOptions tunes the request behavior of an OpenAIEmbedder.
type OpenAIOptions struct {
	// Timeout bounds each API call. Zero means no per-call timeout beyond
	// the caller's context.
	Timeout time.Duration

	// MaxAttempts is the total number of tries per request, default 1
	// (no retry).
	MaxAttempts int
}

// OpenAIEmbedder generates embeddings remotely via the OpenAI API. The
// text-embedding-3 family supports server-side truncation to a requested
// dimension, so one model can back stores of different dimensions.
type OpenAIEmbedder struct {
	client *openai.Client
	model  OpenAIModel
	dims   int
	opts   OpenAIOptions
}

// NewOpenAIEmbedder creates an embedder for the given model, producing
// vectors of dims dimensions.
func NewOpenAIEmbedder(apiKey string, model OpenAIModel, dims int, opts OpenAIOptions) *OpenAIEmbedder {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dims:   dims,
		opts:   opts,
	}
}

func (e *OpenAIEmbedder) Name() string { return string(e.model) }

func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, vecs...)
	}
	return all, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < e.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			// Bounded linear backoff between retries.
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, ctx.Err())
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		vecs, err := e.doRequest(ctx, batch)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: openai request failed after %d attempt(s): %v",
		ErrProviderUnavailable, e.opts.MaxAttempts, lastErr)
}

func (e *OpenAIEmbedder) doRequest(ctx context.Context, batch []string) ([][]float32, error) {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      batch,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dims,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("openai returned %d embeddings, expected %d", len(resp.Data), len(batch))
	}

	vecs := make([][]float32, len(resp.Data))
	for i, emb := range resp.Data {
		vecs[i] = emb.Embedding
	}
	return vecs, nil
}
