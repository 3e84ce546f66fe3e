package entity

import (
	"time"

	"github.com/google/uuid"
)

// RequestLog is one row per conversational turn. It is created empty
// (pending) when the request starts and finalized exactly once with the
// response and serialized thought history.
type RequestLog struct {
	Id             uuid.UUID
	ChatSessionId  uuid.UUID
	UserId         uuid.UUID
	Query          string
	Response       *string
	ThoughtHistory []ThoughtStep
	Status         string
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
