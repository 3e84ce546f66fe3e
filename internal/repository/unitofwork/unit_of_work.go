package unitofwork

import (
	"context"

	"ai-assistant-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	ChatSessionRepository() contract.ChatSessionRepository
	RequestLogRepository() contract.RequestLogRepository
	PlanRepository() contract.PlanRepository
	FileAttachmentRepository() contract.FileAttachmentRepository
	MessageEmbeddingRepository() contract.MessageEmbeddingRepository
	FileChunkEmbeddingRepository() contract.FileChunkEmbeddingRepository
	RequestMetricRepository() contract.RequestMetricRepository
}
