package mapper

import (
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"
)

type PlanMapper struct{}

func NewPlanMapper() *PlanMapper {
	return &PlanMapper{}
}

func (m *PlanMapper) ToEntity(p *model.Plan, steps []*model.PlanStep) *entity.Plan {
	if p == nil {
		return nil
	}

	var updatedAt *time.Time
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		updatedAt = &t
	}

	e := &entity.Plan{
		Id:        p.Id,
		SessionId: p.SessionId,
		Mission:   p.Mission,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: updatedAt,
	}
	for _, s := range steps {
		e.Steps = append(e.Steps, *m.StepToEntity(s))
	}
	return e
}

func (m *PlanMapper) ToModel(e *entity.Plan) *model.Plan {
	if e == nil {
		return nil
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.Plan{
		Id:        e.Id,
		SessionId: e.SessionId,
		Mission:   e.Mission,
		Active:    e.Active,
		CreatedAt: e.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *PlanMapper) StepToEntity(s *model.PlanStep) *entity.PlanStep {
	if s == nil {
		return nil
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.PlanStep{
		Id:          s.Id,
		PlanId:      s.PlanId,
		Description: s.Description,
		Status:      s.Status,
		Position:    s.Position,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

func (m *PlanMapper) StepToModel(e *entity.PlanStep) *model.PlanStep {
	if e == nil {
		return nil
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.PlanStep{
		Id:          e.Id,
		PlanId:      e.PlanId,
		Description: e.Description,
		Status:      e.Status,
		Position:    e.Position,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}
