package contract

import (
	"context"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

type PlanRepository interface {
	// FindActiveBySession returns the single active plan with its steps, or
	// nil when the session has none.
	FindActiveBySession(ctx context.Context, sessionId uuid.UUID) (*entity.Plan, error)
	Create(ctx context.Context, plan *entity.Plan) error
	UpdateStep(ctx context.Context, step *entity.PlanStep) error
	Deactivate(ctx context.Context, planId uuid.UUID) error
}
