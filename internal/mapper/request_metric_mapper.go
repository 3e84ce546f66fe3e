package mapper

import (
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"
)

type RequestMetricMapper struct{}

func NewRequestMetricMapper() *RequestMetricMapper {
	return &RequestMetricMapper{}
}

func (m *RequestMetricMapper) ToModel(e *entity.RequestMetric) *model.RequestMetric {
	if e == nil {
		return nil
	}
	return &model.RequestMetric{
		Id:                e.Id,
		RequestLogId:      e.RequestLogId,
		ChatSessionId:     e.ChatSessionId,
		UserId:            e.UserId,
		Status:            e.Status,
		DurationMs:        e.DurationMs,
		ThoughtIterations: e.ThoughtIterations,
		ToolCalls:         e.ToolCalls,
		PromptTokens:      e.PromptTokens,
		CompletionTokens:  e.CompletionTokens,
		UploadedBytes:     e.UploadedBytes,
		CreatedAt:         e.CreatedAt,
	}
}

func (m *RequestMetricMapper) ToEntity(e *model.RequestMetric) *entity.RequestMetric {
	if e == nil {
		return nil
	}
	return &entity.RequestMetric{
		Id:                e.Id,
		RequestLogId:      e.RequestLogId,
		ChatSessionId:     e.ChatSessionId,
		UserId:            e.UserId,
		Status:            e.Status,
		DurationMs:        e.DurationMs,
		ThoughtIterations: e.ThoughtIterations,
		ToolCalls:         e.ToolCalls,
		PromptTokens:      e.PromptTokens,
		CompletionTokens:  e.CompletionTokens,
		UploadedBytes:     e.UploadedBytes,
		CreatedAt:         e.CreatedAt,
	}
}
