// Package llm provides OpenAI-compatible generation and embedding clients.
package llm

import (
	"context"
)

// Generator is the generation backend consumed by the pipeline. Both
// methods must observe ctx cancellation and deadlines.
type Generator interface {
	// Generate produces a completion for the assembled prompt.
	Generate(ctx context.Context, prompt string, systemMessage string) (string, error)

	// GenerateStream produces a completion as a sequence of text chunks
	// delivered to chunks in order. The channel is not closed by the
	// implementation; the returned string is the full accumulated text.
	GenerateStream(ctx context.Context, prompt string, systemMessage string, chunks chan<- string) (string, error)
}

// Embedder produces embedding vectors for question text. Used by the
// semantic cache tier and the semantic retrieval strategy.
type Embedder interface {
	// CreateEmbedding generates an embedding vector for the input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// CreateEmbeddings generates embeddings for multiple inputs.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

// Client implements both interfaces against one endpoint.
var (
	_ Generator = (*Client)(nil)
	_ Embedder  = (*Client)(nil)
)
