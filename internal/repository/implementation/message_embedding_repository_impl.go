package implementation

import (
	"context"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/mapper"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type MessageEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.EmbeddingMapper
}

func NewMessageEmbeddingRepository(db *gorm.DB) contract.MessageEmbeddingRepository {
	return &MessageEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewEmbeddingMapper(),
	}
}

func (r *MessageEmbeddingRepositoryImpl) Create(ctx context.Context, embedding *entity.MessageEmbedding) error {
	m := r.mapper.MessageToModel(embedding)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*embedding = *r.mapper.MessageToEntity(m)
	return nil
}

func (r *MessageEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.MessageEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	models := make([]*model.MessageEmbedding, len(embeddings))
	for i, e := range embeddings {
		models[i] = r.mapper.MessageToModel(e)
	}
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*embeddings[i] = *r.mapper.MessageToEntity(m)
	}
	return nil
}

func (r *MessageEmbeddingRepositoryImpl) DeleteByUserId(ctx context.Context, userId uuid.UUID) error {
	return r.db.WithContext(ctx).Unscoped().Where("user_id = ?", userId).Delete(&model.MessageEmbedding{}).Error
}

func (r *MessageEmbeddingRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).Unscoped().Where("chat_session_id = ?", sessionId).Delete(&model.MessageEmbedding{}).Error
}

// SearchSimilarWithScore returns embeddings with similarity scores, filtered by threshold.
// Cosine distance in pgvector is 1 - cosine_similarity, so the select computes
// 1 - (embedding_value <=> query_vector).
func (r *MessageEmbeddingRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, userId uuid.UUID, threshold float64) ([]*contract.ScoredMessageEmbedding, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.MessageEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("message_embeddings").
		Select("message_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("user_id = ?", userId).
		Where("deleted_at IS NULL").
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredMessageEmbedding, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredMessageEmbedding{
			Embedding:  r.mapper.MessageToEntity(&res.MessageEmbedding),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
