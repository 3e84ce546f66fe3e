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

type FileChunkEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.EmbeddingMapper
}

func NewFileChunkEmbeddingRepository(db *gorm.DB) contract.FileChunkEmbeddingRepository {
	return &FileChunkEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewEmbeddingMapper(),
	}
}

func (r *FileChunkEmbeddingRepositoryImpl) Create(ctx context.Context, embedding *entity.FileChunkEmbedding) error {
	m := r.mapper.ChunkToModel(embedding)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*embedding = *r.mapper.ChunkToEntity(m)
	return nil
}

func (r *FileChunkEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.FileChunkEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	models := make([]*model.FileChunkEmbedding, len(embeddings))
	for i, e := range embeddings {
		models[i] = r.mapper.ChunkToModel(e)
	}
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*embeddings[i] = *r.mapper.ChunkToEntity(m)
	}
	return nil
}

func (r *FileChunkEmbeddingRepositoryImpl) DeleteByAttachmentId(ctx context.Context, attachmentId uuid.UUID) error {
	return r.db.WithContext(ctx).Unscoped().Where("attachment_id = ?", attachmentId).Delete(&model.FileChunkEmbedding{}).Error
}

func (r *FileChunkEmbeddingRepositoryImpl) DeleteByUserId(ctx context.Context, userId uuid.UUID) error {
	return r.db.WithContext(ctx).Unscoped().Where("user_id = ?", userId).Delete(&model.FileChunkEmbedding{}).Error
}

func (r *FileChunkEmbeddingRepositoryImpl) CountByAttachmentId(ctx context.Context, attachmentId uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.FileChunkEmbedding{}).
		Where("attachment_id = ?", attachmentId).
		Count(&count).Error
	return count, err
}

func (r *FileChunkEmbeddingRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, userId uuid.UUID, threshold float64) ([]*contract.ScoredFileChunkEmbedding, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.FileChunkEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("file_chunk_embeddings").
		Select("file_chunk_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("user_id = ?", userId).
		Where("deleted_at IS NULL").
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredFileChunkEmbedding, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredFileChunkEmbedding{
			Embedding:  r.mapper.ChunkToEntity(&res.FileChunkEmbedding),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
