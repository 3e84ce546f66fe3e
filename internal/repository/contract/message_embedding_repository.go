package contract

import (
	"context"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// ScoredMessageEmbedding wraps MessageEmbedding with its similarity score
type ScoredMessageEmbedding struct {
	Embedding  *entity.MessageEmbedding
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type MessageEmbeddingRepository interface {
	Create(ctx context.Context, embedding *entity.MessageEmbedding) error
	CreateBulk(ctx context.Context, embeddings []*entity.MessageEmbedding) error
	DeleteByUserId(ctx context.Context, userId uuid.UUID) error
	DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error
	// SearchSimilarWithScore returns embeddings with their cosine similarity,
	// filtered by threshold, best first.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, userId uuid.UUID, threshold float64) ([]*ScoredMessageEmbedding, error)
}
