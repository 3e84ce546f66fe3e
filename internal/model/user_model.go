package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	Id                 uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email              string         `gorm:"type:text;not null;uniqueIndex"`
	FullName           string         `gorm:"type:text;not null"`
	MemoryEnabled      bool           `gorm:"default:true"`
	ProfileSummary     *string        `gorm:"type:text"`
	ProfileRefreshedAt *time.Time     ``
	CreatedAt          time.Time      `gorm:"autoCreateTime"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime"`
	DeletedAt          gorm.DeletedAt `gorm:"index"`
}

func (User) TableName() string {
	return "users"
}
