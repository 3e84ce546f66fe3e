package mapper

import (
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type EmbeddingMapper struct{}

func NewEmbeddingMapper() *EmbeddingMapper {
	return &EmbeddingMapper{}
}

func (m *EmbeddingMapper) MessageToEntity(e *model.MessageEmbedding) *entity.MessageEmbedding {
	if e == nil {
		return nil
	}

	var deletedAt *time.Time
	if e.DeletedAt.Valid {
		t := e.DeletedAt.Time
		deletedAt = &t
	}

	return &entity.MessageEmbedding{
		Id:             e.Id,
		RequestLogId:   e.RequestLogId,
		ChatSessionId:  e.ChatSessionId,
		UserId:         e.UserId,
		Document:       e.Document,
		EmbeddingValue: e.EmbeddingValue.Slice(),
		CreatedAt:      e.CreatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      e.DeletedAt.Valid,
	}
}

func (m *EmbeddingMapper) MessageToModel(e *entity.MessageEmbedding) *model.MessageEmbedding {
	if e == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if e.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *e.DeletedAt, Valid: true}
	}

	return &model.MessageEmbedding{
		Id:             e.Id,
		RequestLogId:   e.RequestLogId,
		ChatSessionId:  e.ChatSessionId,
		UserId:         e.UserId,
		Document:       e.Document,
		EmbeddingValue: pgvector.NewVector(e.EmbeddingValue),
		CreatedAt:      e.CreatedAt,
		DeletedAt:      deletedAt,
	}
}

func (m *EmbeddingMapper) ChunkToEntity(e *model.FileChunkEmbedding) *entity.FileChunkEmbedding {
	if e == nil {
		return nil
	}

	var deletedAt *time.Time
	if e.DeletedAt.Valid {
		t := e.DeletedAt.Time
		deletedAt = &t
	}

	return &entity.FileChunkEmbedding{
		Id:             e.Id,
		AttachmentId:   e.AttachmentId,
		UserId:         e.UserId,
		Document:       e.Document,
		ChunkIndex:     e.ChunkIndex,
		EmbeddingValue: e.EmbeddingValue.Slice(),
		CreatedAt:      e.CreatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      e.DeletedAt.Valid,
	}
}

func (m *EmbeddingMapper) ChunkToModel(e *entity.FileChunkEmbedding) *model.FileChunkEmbedding {
	if e == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if e.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *e.DeletedAt, Valid: true}
	}

	return &model.FileChunkEmbedding{
		Id:             e.Id,
		AttachmentId:   e.AttachmentId,
		UserId:         e.UserId,
		Document:       e.Document,
		ChunkIndex:     e.ChunkIndex,
		EmbeddingValue: pgvector.NewVector(e.EmbeddingValue),
		CreatedAt:      e.CreatedAt,
		DeletedAt:      deletedAt,
	}
}
