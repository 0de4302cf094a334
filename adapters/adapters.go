package adapters

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/grykalski/keyword-clusterer/adapters/openai"
	"github.com/grykalski/keyword-clusterer/adapters/pinecone"
	"github.com/grykalski/keyword-clusterer/adapters/voyage"
)

const defaultChatModel = "gpt-4o"

// OpenAILLMAdapter adapts the OpenAI chat client to the clusterer's
// LLMClient interface.
type OpenAILLMAdapter struct {
	client      openai.LanguageModelClient
	model       string
	temperature *float32
}

// NewOpenAILLMAdapter creates an adapter for OpenAI with the API key from the
// environment unless one is provided. An empty model selects the default.
func NewOpenAILLMAdapter(apiKey *string, model string) (*OpenAILLMAdapter, error) {
	key, err := loadEnvVar(apiKey, "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}

	instance := &OpenAILLMAdapter{
		client: openai.NewClient(*key),
		model:  defaultChatModel,
	}
	if model != "" {
		instance.model = model
	}
	return instance, nil
}

// SetTemperature sets the sampling temperature. Nil leaves the model default.
func (a *OpenAILLMAdapter) SetTemperature(t *float32) {
	a.temperature = t
}

// Complete implements the LLMClient interface
func (a *OpenAILLMAdapter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatMessage{
			{Role: openai.MessageRoleSystem, Content: &systemPrompt},
			{Role: openai.MessageRoleUser, Content: &userPrompt},
		},
		Temperature: a.temperature,
	}

	resp, err := a.client.ChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to get LLM response: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("no response from LLM")
	}

	return strings.TrimSpace(*resp.Choices[0].Message.Content), nil
}

// VoyageEmbeddingAdapter adapts the Voyage client to the clusterer's
// EmbeddingClient interface.
type VoyageEmbeddingAdapter struct {
	client *voyage.EmbeddingService
}

// NewVoyageEmbeddingAdapter creates a new adapter for Voyage AI
func NewVoyageEmbeddingAdapter(apiKey *string) (*VoyageEmbeddingAdapter, error) {
	key, err := loadEnvVar(apiKey, "VOYAGEAI_API_KEY")
	if err != nil {
		return nil, err
	}

	return &VoyageEmbeddingAdapter{
		client: voyage.NewEmbeddingService(*key),
	}, nil
}

// GenerateEmbedding implements the EmbeddingClient interface
func (a *VoyageEmbeddingAdapter) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return a.client.GenerateEmbedding(ctx, text)
}

// GenerateEmbeddings implements the EmbeddingClient interface
func (a *VoyageEmbeddingAdapter) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return a.client.GenerateEmbeddings(ctx, texts)
}

// PineconeVectorCache adapts a Pinecone index to the clusterer's VectorCache
// interface, persisting phrase embeddings across runs.
type PineconeVectorCache struct {
	index *pinecone.IndexGateway
}

// NewPineconeVectorCache creates a new cache backed by a Pinecone index
func NewPineconeVectorCache(apiKey *string, host *string, namespace string) (*PineconeVectorCache, error) {
	key, err := loadEnvVar(apiKey, "PINECONE_API_KEY")
	if err != nil {
		return nil, err
	}

	h, err := loadEnvVar(host, "PINECONE_HOST")
	if err != nil {
		return nil, err
	}

	index, err := pinecone.NewIndexGateway(*key, *h, namespace)
	if err != nil {
		return nil, err
	}

	return &PineconeVectorCache{index: index}, nil
}

// Fetch implements the VectorCache interface
func (c *PineconeVectorCache) Fetch(ctx context.Context, id string) ([]float32, bool, error) {
	vector, err := c.index.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if vector == nil || len(vector.Values) == 0 {
		return nil, false, nil
	}
	return vector.Values, true, nil
}

// Store implements the VectorCache interface
func (c *PineconeVectorCache) Store(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	return c.index.Upsert(ctx, id, vector, metadata)
}

// loadEnvVar loads an environment variable into a pointer if no value is provided
func loadEnvVar(target *string, envKey string) (*string, error) {
	if target == nil {
		envVar := os.Getenv(envKey)
		if envVar == "" {
			return nil, fmt.Errorf("%s environment variable not set and no value provided", envKey)
		}
		return &envVar, nil
	}
	return target, nil
}
