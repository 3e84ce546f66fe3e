package model

import (
	"time"

	"github.com/google/uuid"
)

type Plan struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId uuid.UUID `gorm:"type:uuid;not null;index"`
	Mission   string    `gorm:"type:text;not null"`
	Active    bool      `gorm:"not null;default:true;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Plan) TableName() string {
	return "plans"
}

type PlanStep struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PlanId      uuid.UUID `gorm:"type:uuid;not null;index"`
	Description string    `gorm:"type:text;not null"`
	Status      string    `gorm:"type:text;not null;default:'pending'"`
	Position    int       `gorm:"not null;default:0"` // explicit ordering
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (PlanStep) TableName() string {
	return "plan_steps"
}
