package mapper

import (
	"encoding/json"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RequestLogMapper struct{}

func NewRequestLogMapper() *RequestLogMapper {
	return &RequestLogMapper{}
}

func (m *RequestLogMapper) ToEntity(e *model.RequestLog) *entity.RequestLog {
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

	var history []entity.ThoughtStep
	if len(e.ThoughtHistory) > 0 {
		// A corrupt history column should not make the whole row unreadable.
		_ = json.Unmarshal(e.ThoughtHistory, &history)
	}

	return &entity.RequestLog{
		Id:             e.Id,
		ChatSessionId:  e.ChatSessionId,
		UserId:         e.UserId,
		Query:          e.Query,
		Response:       e.Response,
		ThoughtHistory: history,
		Status:         e.Status,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      e.DeletedAt.Valid,
	}
}

func (m *RequestLogMapper) ToModel(e *entity.RequestLog) *model.RequestLog {
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

	var history datatypes.JSON
	if len(e.ThoughtHistory) > 0 {
		if b, err := json.Marshal(e.ThoughtHistory); err == nil {
			history = b
		}
	}

	return &model.RequestLog{
		Id:             e.Id,
		ChatSessionId:  e.ChatSessionId,
		UserId:         e.UserId,
		Query:          e.Query,
		Response:       e.Response,
		ThoughtHistory: history,
		Status:         e.Status,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

func (m *RequestLogMapper) ToEntities(logs []*model.RequestLog) []*entity.RequestLog {
	entities := make([]*entity.RequestLog, len(logs))
	for i, l := range logs {
		entities[i] = m.ToEntity(l)
	}
	return entities
}
