package mapper

import (
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"

	"gorm.io/gorm"
)

type UserMapper struct{}

func NewUserMapper() *UserMapper {
	return &UserMapper{}
}

func (m *UserMapper) ToEntity(e *model.User) *entity.User {
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

	return &entity.User{
		Id:                 e.Id,
		Email:              e.Email,
		FullName:           e.FullName,
		MemoryEnabled:      e.MemoryEnabled,
		ProfileSummary:     e.ProfileSummary,
		ProfileRefreshedAt: e.ProfileRefreshedAt,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          updatedAt,
		DeletedAt:          deletedAt,
		IsDeleted:          e.DeletedAt.Valid,
	}
}

func (m *UserMapper) ToModel(e *entity.User) *model.User {
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

	return &model.User{
		Id:                 e.Id,
		Email:              e.Email,
		FullName:           e.FullName,
		MemoryEnabled:      e.MemoryEnabled,
		ProfileSummary:     e.ProfileSummary,
		ProfileRefreshedAt: e.ProfileRefreshedAt,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          updatedAt,
		DeletedAt:          deletedAt,
	}
}
