package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Encoder encodes text batches through the Gemini embedding API. It is the
// production implementation of the embedding engine's Encoder capability.
type Encoder struct {
	client *genai.Client
	model  string
	dim    int
}

// NewEncoder builds an encoder bound to one model and one output
// dimensionality. Every vector leaving EncodeBatch has exactly dim
// components; stored and query embeddings are only comparable under that.
func NewEncoder(ctx context.Context, apiKey, model string, dim int) (*Encoder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Encoder{client: client, model: model, dim: dim}, nil
}

func (e *Encoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	slog.DebugContext(ctx, "encoding batch", "model", e.model, "count", len(texts))

	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch = batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		slog.ErrorContext(ctx, "batch encode failed", "error", err, "count", len(texts))
		return nil, err
	}
	if len(res.Embeddings) != len(texts) {
		return nil, errors.New("gemini returned wrong number of embeddings")
	}

	vecs := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, errors.New("gemini returned empty embedding")
		}
		vec, err := fitDim(emb.Values, e.dim)
		if err != nil {
			return nil, fmt.Errorf("embedding %d: %w", i, err)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// fitDim enforces the configured dimensionality. Gemini embedding models
// emit their native size and front-load information into the leading
// components, so longer vectors are cut down to dim; a shorter vector means
// a misconfigured model and is rejected before it reaches the corpus.
func fitDim(vec []float32, dim int) ([]float32, error) {
	if dim <= 0 || len(vec) == dim {
		return vec, nil
	}
	if len(vec) < dim {
		return nil, fmt.Errorf("model returned %d-dim embedding, want %d", len(vec), dim)
	}
	return vec[:dim], nil
}

func (e *Encoder) Close() error {
	return e.client.Close()
}
