package contract

import (
	"context"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
)

type RequestLogRepository interface {
	Create(ctx context.Context, log *entity.RequestLog) error
	Update(ctx context.Context, log *entity.RequestLog) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RequestLog, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RequestLog, error)
	// FindRecentBySession returns the newest `limit` logs for the session,
	// ordered oldest first so they can be replayed as chat history.
	FindRecentBySession(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.RequestLog, error)
	// DeleteAfter removes all logs of the session created strictly after the
	// reference time. Regeneration truncates history with this.
	DeleteAfter(ctx context.Context, sessionId uuid.UUID, after time.Time) error
}
