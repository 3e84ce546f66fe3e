package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FileAttachment struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId       uuid.UUID      `gorm:"type:uuid;not null;index"`
	SessionId    uuid.UUID      `gorm:"type:uuid;not null;index"`
	RequestLogId *uuid.UUID     `gorm:"type:uuid;index"` // set at finalization
	StorageKey   string         `gorm:"type:text;not null;uniqueIndex"`
	FileName     string         `gorm:"type:text;not null"`
	MimeType     string         `gorm:"type:text"`
	SizeBytes    int64          `gorm:"default:0"`
	UploadId     *string        `gorm:"type:text;index"` // pre-upload correlation id
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (FileAttachment) TableName() string {
	return "file_attachments"
}
