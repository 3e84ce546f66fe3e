package tooling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// planInput is the action envelope the backend (or a local signal)
// sends to the plan tool.
type planInput struct {
	Action   string   `json:"action"`
	Mission  string   `json:"mission,omitempty"`
	Steps    []string `json:"steps,omitempty"`
	Position *int     `json:"position,omitempty"`
	Status   string   `json:"status,omitempty"`
}

type planStepView struct {
	Position    int    `json:"position"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type planView struct {
	Id      string         `json:"id"`
	Mission string         `json:"mission"`
	Active  bool           `json:"active"`
	Steps   []planStepView `json:"steps"`
}

var validStepStatuses = map[string]bool{
	constant.PlanStepStatusPending:    true,
	constant.PlanStepStatusInProgress: true,
	constant.PlanStepStatusCompleted:  true,
	constant.PlanStepStatusFailed:     true,
	constant.PlanStepStatusSkipped:    true,
}

// PlanTool manages the session's mission plan. It always reads and
// writes through the store so concurrent requests against one session
// serialize there instead of through in-process locking.
type PlanTool struct {
	repoFactory unitofwork.RepositoryFactory
	log         logger.ILogger
}

var _ Tool = &PlanTool{}

func NewPlanTool(repoFactory unitofwork.RepositoryFactory, log logger.ILogger) *PlanTool {
	return &PlanTool{repoFactory: repoFactory, log: log}
}

func (t *PlanTool) Name() string {
	return constant.ToolNamePlan
}

func (t *PlanTool) Execute(ctx context.Context, inv Invocation, query string, progress func(message string)) (string, error) {
	var input planInput
	if err := json.Unmarshal([]byte(query), &input); err != nil {
		return "", fmt.Errorf("invalid plan tool input: %w", err)
	}

	uow := t.repoFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return "", err
	}
	defer uow.Rollback()

	var plan *entity.Plan
	var err error
	switch input.Action {
	case constant.PlanActionCreate:
		plan, err = t.create(ctx, uow, inv.SessionId, input)
	case constant.PlanActionUpdateStep:
		plan, err = t.updateStep(ctx, uow, inv.SessionId, input)
	case constant.PlanActionComplete:
		plan, err = t.complete(ctx, uow, inv.SessionId)
	default:
		return "", fmt.Errorf("unknown plan action %q", input.Action)
	}
	if err != nil {
		return "", err
	}

	if err := uow.Commit(); err != nil {
		return "", err
	}

	out, err := json.Marshal(toPlanView(plan))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// create is idempotent against an already-active plan: it returns the
// existing plan instead of creating a second active one.
func (t *PlanTool) create(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID, input planInput) (*entity.Plan, error) {
	existing, err := uow.PlanRepository().FindActiveBySession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		t.log.Debug("Tooling", "Plan create reused existing active plan", map[string]interface{}{
			"plan_id": existing.Id.String(),
		})
		return existing, nil
	}

	plan := &entity.Plan{
		Id:        uuid.New(),
		SessionId: sessionId,
		Mission:   input.Mission,
		Active:    true,
		CreatedAt: time.Now(),
	}
	for i, description := range input.Steps {
		plan.Steps = append(plan.Steps, entity.PlanStep{
			Id:          uuid.New(),
			PlanId:      plan.Id,
			Description: description,
			Status:      constant.PlanStepStatusPending,
			Position:    i + 1,
			CreatedAt:   plan.CreatedAt,
		})
	}

	if err := uow.PlanRepository().Create(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (t *PlanTool) updateStep(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID, input planInput) (*entity.Plan, error) {
	if !validStepStatuses[input.Status] {
		return nil, fmt.Errorf("invalid plan step status %q", input.Status)
	}
	if input.Position == nil {
		return nil, fmt.Errorf("plan step position is required")
	}

	plan, err := uow.PlanRepository().FindActiveBySession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("no active plan for session")
	}

	var step *entity.PlanStep
	for i := range plan.Steps {
		if plan.Steps[i].Position == *input.Position {
			step = &plan.Steps[i]
			break
		}
	}
	if step == nil {
		return nil, fmt.Errorf("plan has no step at position %d", *input.Position)
	}

	step.Status = input.Status
	now := time.Now()
	step.UpdatedAt = &now
	if err := uow.PlanRepository().UpdateStep(ctx, step); err != nil {
		return nil, err
	}

	return plan, nil
}

func (t *PlanTool) complete(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID) (*entity.Plan, error) {
	plan, err := uow.PlanRepository().FindActiveBySession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("no active plan for session")
	}

	if err := uow.PlanRepository().Deactivate(ctx, plan.Id); err != nil {
		return nil, err
	}
	plan.Active = false
	return plan, nil
}

func toPlanView(plan *entity.Plan) planView {
	view := planView{
		Id:      plan.Id.String(),
		Mission: plan.Mission,
		Active:  plan.Active,
		Steps:   make([]planStepView, 0, len(plan.Steps)),
	}
	for _, step := range plan.Steps {
		view.Steps = append(view.Steps, planStepView{
			Position:    step.Position,
			Description: step.Description,
			Status:      step.Status,
		})
	}
	return view
}
