package contract

import (
	"context"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/specification"
)

type UserRepository interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	// FindNeedingProfileRefresh lists users whose profile summary is missing
	// or older than the cutoff. Consumed by the background summarizer.
	FindNeedingProfileRefresh(ctx context.Context, cutoff time.Time, limit int) ([]*entity.User, error)
}
