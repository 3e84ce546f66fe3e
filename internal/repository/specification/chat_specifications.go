package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserOwnedBy struct {
	UserID uuid.UUID
}

func (s UserOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type ByChatSessionID struct {
	ChatSessionID uuid.UUID
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.ChatSessionID)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// CreatedAfter selects rows strictly newer than the reference time.
// Used by regeneration to truncate everything after the target log.
type CreatedAfter struct {
	Time time.Time
}

func (s CreatedAfter) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("created_at > ?", s.Time)
}

// Unclaimed selects pre-uploaded attachments not yet linked to a turn.
type Unclaimed struct{}

func (s Unclaimed) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("request_log_id IS NULL AND upload_id IS NOT NULL")
}

// CreatedBefore selects rows older than the reference time.
type CreatedBefore struct {
	Time time.Time
}

func (s CreatedBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("created_at < ?", s.Time)
}

type Limit struct {
	Limit int
}

func (s Limit) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(s.Limit)
}
