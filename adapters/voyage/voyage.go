package voyage

import (
	"context"
	"fmt"

	"github.com/austinfhunter/voyageai"
)

const EMBEDDING_DIMENSIONS = 1024

const VOYAGEAI_EMBEDDING_MODEL = "voyage-3.5-lite"

// EmbeddingService generates embeddings for keyword phrases via VoyageAI
type EmbeddingService struct {
	client     *voyageai.VoyageClient
	dimensions int
	model      string
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(apiKey string) *EmbeddingService {
	return &EmbeddingService{
		client: voyageai.NewClient(&voyageai.VoyageClientOpts{
			Key: apiKey,
		}),
		dimensions: EMBEDDING_DIMENSIONS,
		model:      VOYAGEAI_EMBEDDING_MODEL,
	}
}

// SetModel sets the embedding model
func (es *EmbeddingService) SetModel(model string) {
	es.model = model
}

// SetDimensions sets the output dimensions for the embedding model
func (es *EmbeddingService) SetDimensions(dimensions int) {
	es.dimensions = dimensions
}

// GenerateEmbedding generates an embedding for a single phrase
func (es *EmbeddingService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := es.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateEmbeddings generates embeddings for multiple phrases in one request
func (es *EmbeddingService) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	dimensions := es.dimensions

	embeddings, err := es.client.Embed(
		texts,
		es.model,
		&voyageai.EmbeddingRequestOpts{
			OutputDimension: &dimensions,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("could not get embeddings: %w", err)
	}

	if len(embeddings.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings.Data))
	}

	vectors := make([][]float32, len(embeddings.Data))
	for i, obj := range embeddings.Data {
		vectors[i] = obj.Embedding
	}
	return vectors, nil
}
