package service

import (
	"context"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/events"
	pktNats "ai-assistant-be/pkg/nats"
)

// ITelemetryAuditService persists a trail of request telemetry events
// to its own log file for offline inspection.
type ITelemetryAuditService interface {
	Start() error
}

type telemetryAuditService struct {
	subscriber *pktNats.Subscriber
	log        logger.ILogger
}

func NewTelemetryAuditService(subscriber *pktNats.Subscriber, log logger.ILogger) ITelemetryAuditService {
	return &telemetryAuditService{
		subscriber: subscriber,
		log:        log,
	}
}

func (s *telemetryAuditService) Start() error {
	return s.subscriber.Subscribe("telemetry.>", "telemetry-audit", func(_ context.Context, event events.Event) error {
		s.log.Info("Telemetry", event.EventType(), event.Payload())
		return nil
	})
}
