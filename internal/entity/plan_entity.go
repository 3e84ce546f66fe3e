package entity

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a session-scoped mission checklist. At most one plan per session
// is active at a time; the plan tool is the only writer.
type Plan struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	Mission   string
	Active    bool
	Steps     []PlanStep
	CreatedAt time.Time
	UpdatedAt *time.Time
}

type PlanStep struct {
	Id          uuid.UUID
	PlanId      uuid.UUID
	Description string
	Status      string
	Position    int
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}
