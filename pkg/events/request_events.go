package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeRequestCompleted = "REQUEST_COMPLETED"
	TypeRequestFailed    = "REQUEST_FAILED"
)

// NewRequestCompletedEvent summarizes one finished orchestration run for
// downstream consumers (dashboards, notification fan-out).
func NewRequestCompletedEvent(userId, sessionId, logId uuid.UUID, summary string, durationMs int64) Event {
	return BaseEvent{
		Type: TypeRequestCompleted,
		Data: map[string]interface{}{
			"user_id":     userId.String(),
			"session_id":  sessionId.String(),
			"log_id":      logId.String(),
			"summary":     summary,
			"duration_ms": durationMs,
		},
		OccurredAt: time.Now(),
	}
}

// NewRequestFailedEvent records a fatally failed orchestration run.
func NewRequestFailedEvent(userId, sessionId uuid.UUID, reason string, durationMs int64) Event {
	return BaseEvent{
		Type: TypeRequestFailed,
		Data: map[string]interface{}{
			"user_id":     userId.String(),
			"session_id":  sessionId.String(),
			"reason":      reason,
			"duration_ms": durationMs,
		},
		OccurredAt: time.Now(),
	}
}
