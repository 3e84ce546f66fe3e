package model

import (
	"time"

	"github.com/google/uuid"
)

type RequestMetric struct {
	Id                uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RequestLogId      uuid.UUID `gorm:"type:uuid;not null;index"`
	ChatSessionId     uuid.UUID `gorm:"type:uuid;not null;index"`
	UserId            uuid.UUID `gorm:"type:uuid;not null;index"`
	Status            string    `gorm:"type:text;not null"`
	DurationMs        int64     `gorm:"default:0"`
	ThoughtIterations int       `gorm:"default:0"`
	ToolCalls         int       `gorm:"default:0"`
	PromptTokens      int       `gorm:"default:0"`
	CompletionTokens  int       `gorm:"default:0"`
	UploadedBytes     int64     `gorm:"default:0"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

func (RequestMetric) TableName() string {
	return "request_metrics"
}
