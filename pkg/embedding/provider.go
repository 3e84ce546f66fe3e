package embedding

import "context"

// Task types forwarded to the embedding backend so it can pick the right
// instruction prefix.
const (
	TaskTypeQuery    = "RETRIEVAL_QUERY"
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
)

// Provider defines the interface for generating text embeddings
type Provider interface {
	Generate(ctx context.Context, text string, taskType string) ([]float32, error)
}
