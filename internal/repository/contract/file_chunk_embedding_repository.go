package contract

import (
	"context"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// ScoredFileChunkEmbedding wraps FileChunkEmbedding with its similarity score
type ScoredFileChunkEmbedding struct {
	Embedding  *entity.FileChunkEmbedding
	Similarity float64
}

type FileChunkEmbeddingRepository interface {
	Create(ctx context.Context, embedding *entity.FileChunkEmbedding) error
	CreateBulk(ctx context.Context, embeddings []*entity.FileChunkEmbedding) error
	DeleteByAttachmentId(ctx context.Context, attachmentId uuid.UUID) error
	DeleteByUserId(ctx context.Context, userId uuid.UUID) error
	CountByAttachmentId(ctx context.Context, attachmentId uuid.UUID) (int64, error)
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, userId uuid.UUID, threshold float64) ([]*ScoredFileChunkEmbedding, error)
}
