package entity

import (
	"time"

	"github.com/google/uuid"
)

type RequestMetric struct {
	Id                uuid.UUID
	RequestLogId      uuid.UUID
	ChatSessionId     uuid.UUID
	UserId            uuid.UUID
	Status            string
	DurationMs        int64
	ThoughtIterations int
	ToolCalls         int
	PromptTokens      int
	CompletionTokens  int
	UploadedBytes     int64
	CreatedAt         time.Time
}
