package implementation

import (
	"context"
	"errors"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/mapper"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FileAttachmentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.FileAttachmentMapper
}

func NewFileAttachmentRepository(db *gorm.DB) contract.FileAttachmentRepository {
	return &FileAttachmentRepositoryImpl{
		db:     db,
		mapper: mapper.NewFileAttachmentMapper(),
	}
}

func (r *FileAttachmentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *FileAttachmentRepositoryImpl) Create(ctx context.Context, attachment *entity.FileAttachment) error {
	m := r.mapper.ToModel(attachment)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*attachment = *r.mapper.ToEntity(m)
	return nil
}

func (r *FileAttachmentRepositoryImpl) Update(ctx context.Context, attachment *entity.FileAttachment) error {
	m := r.mapper.ToModel(attachment)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*attachment = *r.mapper.ToEntity(m)
	return nil
}

func (r *FileAttachmentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.FileAttachment, error) {
	var m model.FileAttachment
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *FileAttachmentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.FileAttachment, error) {
	var models []*model.FileAttachment
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *FileAttachmentRepositoryImpl) FindByUploadId(ctx context.Context, userId uuid.UUID, uploadId string) (*entity.FileAttachment, error) {
	var m model.FileAttachment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Where("upload_id = ?", uploadId).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *FileAttachmentRepositoryImpl) AssignToRequestLog(ctx context.Context, attachmentIds []uuid.UUID, logId uuid.UUID) error {
	if len(attachmentIds) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.FileAttachment{}).
		Where("id IN ?", attachmentIds).
		Update("request_log_id", logId).Error
}

func (r *FileAttachmentRepositoryImpl) FindByRequestLogIds(ctx context.Context, logIds []uuid.UUID) ([]*entity.FileAttachment, error) {
	if len(logIds) == 0 {
		return nil, nil
	}
	var models []*model.FileAttachment
	err := r.db.WithContext(ctx).
		Where("request_log_id IN ?", logIds).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
