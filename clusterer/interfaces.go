package clusterer

import "context"

// LLMClient performs a single prompt/response exchange with a language model.
// Implementations are expected to be safe for concurrent use across sessions.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// EmbeddingClient converts phrases into fixed-length vectors.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorCache is an optional cross-run store for phrase embeddings, keyed by
// a stable phrase ID. A miss is (nil, false, nil), not an error.
type VectorCache interface {
	Fetch(ctx context.Context, id string) ([]float32, bool, error)
	Store(ctx context.Context, id string, vector []float32, metadata map[string]any) error
}
