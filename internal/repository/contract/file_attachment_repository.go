package contract

import (
	"context"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
)

type FileAttachmentRepository interface {
	Create(ctx context.Context, attachment *entity.FileAttachment) error
	Update(ctx context.Context, attachment *entity.FileAttachment) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.FileAttachment, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.FileAttachment, error)
	// FindByUploadId resolves a pre-upload correlation id to its attachment.
	FindByUploadId(ctx context.Context, userId uuid.UUID, uploadId string) (*entity.FileAttachment, error)
	// AssignToRequestLog links uploaded attachments to their finalized turn.
	AssignToRequestLog(ctx context.Context, attachmentIds []uuid.UUID, logId uuid.UUID) error
	FindByRequestLogIds(ctx context.Context, logIds []uuid.UUID) ([]*entity.FileAttachment, error)
}
