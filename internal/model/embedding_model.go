package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type MessageEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RequestLogId   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ChatSessionId  uuid.UUID       `gorm:"type:uuid;not null;index"`
	UserId         uuid.UUID       `gorm:"type:uuid;not null;index"`
	Document       string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(256)"` // all vectors normalized to 256 dims before storage
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	DeletedAt      gorm.DeletedAt  `gorm:"index"`
}

func (MessageEmbedding) TableName() string {
	return "message_embeddings"
}

type FileChunkEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AttachmentId   uuid.UUID       `gorm:"type:uuid;not null;index"`
	UserId         uuid.UUID       `gorm:"type:uuid;not null;index"`
	Document       string          `gorm:"type:text"`
	ChunkIndex     int             `gorm:"default:0"` // 0-based index for ordering
	EmbeddingValue pgvector.Vector `gorm:"type:vector(256)"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	DeletedAt      gorm.DeletedAt  `gorm:"index"`
}

func (FileChunkEmbedding) TableName() string {
	return "file_chunk_embeddings"
}
