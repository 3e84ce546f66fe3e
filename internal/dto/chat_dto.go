package dto

import (
	"time"

	"github.com/google/uuid"
)

// InlineFileDTO is one file shipped inside the stream request body,
// base64-encoded by the client.
type InlineFileDTO struct {
	Name        string `json:"name" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
	Data        string `json:"data" validate:"required"` // base64
}

type StreamChatRequest struct {
	Query              string          `json:"query"`
	ChatSessionId      *uuid.UUID      `json:"chat_session_id,omitempty"`
	RegenerateLogId    *uuid.UUID      `json:"regenerate_log_id,omitempty"`
	Files              []InlineFileDTO `json:"files,omitempty" validate:"max=10,dive"`
	UploadIds          []string        `json:"upload_ids,omitempty" validate:"max=10"`
	MemoryEnabled      *bool           `json:"memory_enabled,omitempty"`
	CustomInstructions string          `json:"custom_instructions,omitempty" validate:"max=4000"`
	Mode               string          `json:"mode,omitempty"`
}

type UploadResponse struct {
	UploadId string `json:"upload_id"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
}

type GetAllSessionsResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Mode      string     `json:"mode,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type GetSessionHistoryResponse struct {
	Id        uuid.UUID `json:"id"`
	Query     string    `json:"query"`
	Response  *string   `json:"response"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type DeleteMemoryRequest struct {
	ChatSessionId *uuid.UUID `json:"chat_session_id,omitempty"`
}
