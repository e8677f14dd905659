package llm

import (
	"context"
)

// MockClient is a configurable mock for testing pipeline stages that call
// the generation backend or embedding provider. Set the function fields to
// control behavior in tests.
type MockClient struct {
	// GenerateFunc is called when Generate is invoked.
	// If nil, returns "SELECT 1" and nil error.
	GenerateFunc func(ctx context.Context, prompt string, systemMessage string) (string, error)

	// GenerateStreamFunc is called when GenerateStream is invoked.
	// If nil, emits the GenerateFunc result as a single chunk.
	GenerateStreamFunc func(ctx context.Context, prompt string, systemMessage string, chunks chan<- string) (string, error)

	// CreateEmbeddingFunc is called when CreateEmbedding is invoked.
	// If nil, returns a fixed unit vector.
	CreateEmbeddingFunc func(ctx context.Context, input string) ([]float32, error)

	// Call tracking for verification
	GenerateCalls        int
	GenerateStreamCalls  int
	CreateEmbeddingCalls int

	// LastPrompt records the most recent prompt passed to Generate or
	// GenerateStream.
	LastPrompt string
}

// NewMockClient creates a new mock with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Generate implements Generator.
func (m *MockClient) Generate(ctx context.Context, prompt string, systemMessage string) (string, error) {
	m.GenerateCalls++
	m.LastPrompt = prompt
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, systemMessage)
	}
	return "SELECT 1", nil
}

// GenerateStream implements Generator.
func (m *MockClient) GenerateStream(ctx context.Context, prompt string, systemMessage string, chunks chan<- string) (string, error) {
	m.GenerateStreamCalls++
	m.LastPrompt = prompt
	if m.GenerateStreamFunc != nil {
		return m.GenerateStreamFunc(ctx, prompt, systemMessage, chunks)
	}
	text, err := m.Generate(ctx, prompt, systemMessage)
	if err != nil {
		return "", err
	}
	select {
	case chunks <- text:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return text, nil
}

// CreateEmbedding implements Embedder.
func (m *MockClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.CreateEmbeddingCalls++
	if m.CreateEmbeddingFunc != nil {
		return m.CreateEmbeddingFunc(ctx, input)
	}
	return []float32{1, 0, 0}, nil
}

// CreateEmbeddings implements Embedder.
func (m *MockClient) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		vec, err := m.CreateEmbedding(ctx, in)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Reset clears call tracking counters.
func (m *MockClient) Reset() {
	m.GenerateCalls = 0
	m.GenerateStreamCalls = 0
	m.CreateEmbeddingCalls = 0
	m.LastPrompt = ""
}

// Ensure MockClient implements the interfaces at compile time.
var (
	_ Generator = (*MockClient)(nil)
	_ Embedder  = (*MockClient)(nil)
)
