package implementation

import (
	"context"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/mapper"
	"ai-assistant-be/internal/repository/contract"

	"gorm.io/gorm"
)

type RequestMetricRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RequestMetricMapper
}

func NewRequestMetricRepository(db *gorm.DB) contract.RequestMetricRepository {
	return &RequestMetricRepositoryImpl{
		db:     db,
		mapper: mapper.NewRequestMetricMapper(),
	}
}

func (r *RequestMetricRepositoryImpl) Create(ctx context.Context, metric *entity.RequestMetric) error {
	m := r.mapper.ToModel(metric)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*metric = *r.mapper.ToEntity(m)
	return nil
}
