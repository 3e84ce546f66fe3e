package mapper

import (
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"

	"gorm.io/gorm"
)

type ChatSessionMapper struct{}

func NewChatSessionMapper() *ChatSessionMapper {
	return &ChatSessionMapper{}
}

func (m *ChatSessionMapper) ToEntity(e *model.ChatSession) *entity.ChatSession {
	if e == nil {
		return nil
	}

	var deletedAt *time.Time
	if e.DeletedAt.Valid {
		t := e.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		updatedAt = &t
	}

	return &entity.ChatSession{
		Id:                 e.Id,
		UserId:             e.UserId,
		Title:              e.Title,
		Mode:               e.Mode,
		CustomInstructions: e.CustomInstructions,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          updatedAt,
		DeletedAt:          deletedAt,
		IsDeleted:          e.DeletedAt.Valid,
	}
}

func (m *ChatSessionMapper) ToModel(e *entity.ChatSession) *model.ChatSession {
	if e == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if e.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *e.DeletedAt, Valid: true}
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.ChatSession{
		Id:                 e.Id,
		UserId:             e.UserId,
		Title:              e.Title,
		Mode:               e.Mode,
		CustomInstructions: e.CustomInstructions,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          updatedAt,
		DeletedAt:          deletedAt,
	}
}
