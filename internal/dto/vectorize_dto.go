package dto

import "github.com/google/uuid"

// Payloads for the background vectorization pub/sub topics.

type VectorizeMessagePayload struct {
	RequestLogId uuid.UUID `json:"request_log_id"`
}

type VectorizeAttachmentPayload struct {
	AttachmentId uuid.UUID `json:"attachment_id"`
}
