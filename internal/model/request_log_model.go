package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RequestLog struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId  uuid.UUID      `gorm:"type:uuid;not null;index"`
	UserId         uuid.UUID      `gorm:"type:uuid;not null;index"`
	Query          string         `gorm:"type:text;not null"`
	Response       *string        `gorm:"type:text"` // NULL while pending
	ThoughtHistory datatypes.JSON `gorm:"type:jsonb"`
	Status         string         `gorm:"type:text;not null;default:'pending'"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (RequestLog) TableName() string {
	return "request_logs"
}
