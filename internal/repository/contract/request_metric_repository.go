package contract

import (
	"context"

	"ai-assistant-be/internal/entity"
)

type RequestMetricRepository interface {
	Create(ctx context.Context, metric *entity.RequestMetric) error
}
