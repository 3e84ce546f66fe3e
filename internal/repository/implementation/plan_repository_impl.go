package implementation

import (
	"context"
	"errors"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/mapper"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PlanRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PlanMapper
}

func NewPlanRepository(db *gorm.DB) contract.PlanRepository {
	return &PlanRepositoryImpl{
		db:     db,
		mapper: mapper.NewPlanMapper(),
	}
}

func (r *PlanRepositoryImpl) FindActiveBySession(ctx context.Context, sessionId uuid.UUID) (*entity.Plan, error) {
	var p model.Plan
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Where("active = ?", true).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var steps []*model.PlanStep
	err = r.db.WithContext(ctx).
		Where("plan_id = ?", p.Id).
		Order("position ASC").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}

	return r.mapper.ToEntity(&p, steps), nil
}

func (r *PlanRepositoryImpl) Create(ctx context.Context, plan *entity.Plan) error {
	m := r.mapper.ToModel(plan)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}

	steps := make([]*model.PlanStep, len(plan.Steps))
	for i := range plan.Steps {
		plan.Steps[i].PlanId = m.Id
		steps[i] = r.mapper.StepToModel(&plan.Steps[i])
	}
	if len(steps) > 0 {
		if err := r.db.WithContext(ctx).Create(steps).Error; err != nil {
			return err
		}
	}

	*plan = *r.mapper.ToEntity(m, steps)
	return nil
}

func (r *PlanRepositoryImpl) UpdateStep(ctx context.Context, step *entity.PlanStep) error {
	m := r.mapper.StepToModel(step)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*step = *r.mapper.StepToEntity(m)
	return nil
}

func (r *PlanRepositoryImpl) Deactivate(ctx context.Context, planId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Plan{}).
		Where("id = ?", planId).
		Update("active", false).Error
}
