package entity

import (
	"time"

	"github.com/google/uuid"
)

// MessageEmbedding is the vectorized text of one finished turn.
type MessageEmbedding struct {
	Id             uuid.UUID
	RequestLogId   uuid.UUID
	ChatSessionId  uuid.UUID
	UserId         uuid.UUID
	Document       string
	EmbeddingValue []float32
	CreatedAt      time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}

// FileChunkEmbedding is one vectorized chunk of an attachment's extracted text.
type FileChunkEmbedding struct {
	Id             uuid.UUID
	AttachmentId   uuid.UUID
	UserId         uuid.UUID
	Document       string
	ChunkIndex     int
	EmbeddingValue []float32
	CreatedAt      time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
