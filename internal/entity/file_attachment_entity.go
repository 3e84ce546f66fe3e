package entity

import (
	"time"

	"github.com/google/uuid"
)

// FileAttachment references an object in blob storage. RequestLogId is nil
// until the owning turn finalizes and associates its uploads.
type FileAttachment struct {
	Id           uuid.UUID
	UserId       uuid.UUID
	SessionId    uuid.UUID
	RequestLogId *uuid.UUID
	StorageKey   string
	FileName     string
	MimeType     string
	SizeBytes    int64
	UploadId     *string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	DeletedAt    *time.Time
	IsDeleted    bool
}
