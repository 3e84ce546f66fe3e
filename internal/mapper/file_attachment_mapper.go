package mapper

import (
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"

	"gorm.io/gorm"
)

type FileAttachmentMapper struct{}

func NewFileAttachmentMapper() *FileAttachmentMapper {
	return &FileAttachmentMapper{}
}

func (m *FileAttachmentMapper) ToEntity(e *model.FileAttachment) *entity.FileAttachment {
	if e == nil {
		return nil
	}

	var deletedAt *time.Time
	if e.DeletedAt.Valid {
		t := e.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		updatedAt = &t
	}

	return &entity.FileAttachment{
		Id:           e.Id,
		UserId:       e.UserId,
		SessionId:    e.SessionId,
		RequestLogId: e.RequestLogId,
		StorageKey:   e.StorageKey,
		FileName:     e.FileName,
		MimeType:     e.MimeType,
		SizeBytes:    e.SizeBytes,
		UploadId:     e.UploadId,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    updatedAt,
		DeletedAt:    deletedAt,
		IsDeleted:    e.DeletedAt.Valid,
	}
}

func (m *FileAttachmentMapper) ToModel(e *entity.FileAttachment) *model.FileAttachment {
	if e == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if e.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *e.DeletedAt, Valid: true}
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.FileAttachment{
		Id:           e.Id,
		UserId:       e.UserId,
		SessionId:    e.SessionId,
		RequestLogId: e.RequestLogId,
		StorageKey:   e.StorageKey,
		FileName:     e.FileName,
		MimeType:     e.MimeType,
		SizeBytes:    e.SizeBytes,
		UploadId:     e.UploadId,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    updatedAt,
		DeletedAt:    deletedAt,
	}
}

func (m *FileAttachmentMapper) ToEntities(attachments []*model.FileAttachment) []*entity.FileAttachment {
	entities := make([]*entity.FileAttachment, len(attachments))
	for i, a := range attachments {
		entities[i] = m.ToEntity(a)
	}
	return entities
}
