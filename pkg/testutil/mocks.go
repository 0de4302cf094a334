package testutil

import (
	"context"
	"sync"
)

// MockLLMClient is a mock implementation of LLMClient for testing. When
// Responses is set, calls consume it in order, repeating the last entry once
// exhausted; CompleteFunc takes precedence when both are set.
type MockLLMClient struct {
	CompleteFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Responses    []string

	mu         sync.Mutex
	CallCount  int
	LastSystem string
	LastUser   string
	Prompts    []string
}

func (m *MockLLMClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastSystem = systemPrompt
	m.LastUser = userPrompt
	m.Prompts = append(m.Prompts, userPrompt)
	call := m.CallCount
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, systemPrompt, userPrompt)
	}

	if len(m.Responses) > 0 {
		idx := call - 1
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		}
		return m.Responses[idx], nil
	}

	return "{}", nil
}

// Calls returns the number of Complete invocations so far.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient for
// testing. The default embedding is deterministic per text, so equal phrases
// get equal vectors.
type MockEmbeddingClient struct {
	GenerateEmbeddingFunc  func(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddingsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	mu        sync.Mutex
	CallCount int
	LastTexts []string
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastTexts = []string{text}
	m.mu.Unlock()

	if m.GenerateEmbeddingFunc != nil {
		return m.GenerateEmbeddingFunc(ctx, text)
	}
	return defaultEmbedding(text), nil
}

func (m *MockEmbeddingClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastTexts = texts
	m.mu.Unlock()

	if m.GenerateEmbeddingsFunc != nil {
		return m.GenerateEmbeddingsFunc(ctx, texts)
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = defaultEmbedding(t)
	}
	return out, nil
}

// defaultEmbedding hashes the text into a small fixed-length vector.
func defaultEmbedding(text string) []float32 {
	embedding := make([]float32, 8)
	for i, r := range text {
		embedding[i%8] += float32(r%31) / 31.0
	}
	return embedding
}

// MockVectorCache is a mock implementation of VectorCache for testing
type MockVectorCache struct {
	FetchFunc func(ctx context.Context, id string) ([]float32, bool, error)
	StoreFunc func(ctx context.Context, id string, vector []float32, metadata map[string]any) error

	mu         sync.Mutex
	FetchCount int
	StoreCount int
	Storage    map[string][]float32
}

func NewMockVectorCache() *MockVectorCache {
	return &MockVectorCache{
		Storage: make(map[string][]float32),
	}
}

func (m *MockVectorCache) Fetch(ctx context.Context, id string) ([]float32, bool, error) {
	m.mu.Lock()
	m.FetchCount++
	vec, ok := m.Storage[id]
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, id)
	}
	return vec, ok, nil
}

func (m *MockVectorCache) Store(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	m.mu.Lock()
	m.StoreCount++
	m.Storage[id] = vector
	m.mu.Unlock()

	if m.StoreFunc != nil {
		return m.StoreFunc(ctx, id, vector, metadata)
	}
	return nil
}
