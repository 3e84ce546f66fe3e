package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Id                 uuid.UUID
	Email              string
	FullName           string
	MemoryEnabled      bool
	ProfileSummary     *string
	ProfileRefreshedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          *time.Time
	DeletedAt          *time.Time
	IsDeleted          bool
}
