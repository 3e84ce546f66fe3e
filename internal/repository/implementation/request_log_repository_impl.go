package implementation

import (
	"context"
	"errors"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/mapper"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestLogRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RequestLogMapper
}

func NewRequestLogRepository(db *gorm.DB) contract.RequestLogRepository {
	return &RequestLogRepositoryImpl{
		db:     db,
		mapper: mapper.NewRequestLogMapper(),
	}
}

func (r *RequestLogRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *RequestLogRepositoryImpl) Create(ctx context.Context, log *entity.RequestLog) error {
	m := r.mapper.ToModel(log)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*log = *r.mapper.ToEntity(m)
	return nil
}

func (r *RequestLogRepositoryImpl) Update(ctx context.Context, log *entity.RequestLog) error {
	m := r.mapper.ToModel(log)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*log = *r.mapper.ToEntity(m)
	return nil
}

func (r *RequestLogRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RequestLog, error) {
	var m model.RequestLog
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *RequestLogRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RequestLog, error) {
	var models []*model.RequestLog
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *RequestLogRepositoryImpl) FindRecentBySession(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.RequestLog, error) {
	if limit <= 0 {
		limit = 10
	}
	var models []*model.RequestLog
	err := r.db.WithContext(ctx).
		Where("chat_session_id = ?", sessionId).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	// Reverse to oldest-first for history replay
	for i, j := 0, len(models)-1; i < j; i, j = i+1, j-1 {
		models[i], models[j] = models[j], models[i]
	}
	return r.mapper.ToEntities(models), nil
}

func (r *RequestLogRepositoryImpl) DeleteAfter(ctx context.Context, sessionId uuid.UUID, after time.Time) error {
	return r.db.WithContext(ctx).
		Where("chat_session_id = ?", sessionId).
		Where("created_at > ?", after).
		Delete(&model.RequestLog{}).Error
}
