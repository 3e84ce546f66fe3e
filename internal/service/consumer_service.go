package service

import (
	"context"
	"encoding/json"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/specification"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/ingest"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the vectorization topics and feeds the ingest
// pipeline. It runs detached from any request lifetime.
type consumerService struct {
	pubSub     *gochannel.GoChannel
	uowFactory unitofwork.RepositoryFactory
	vectorizer *ingest.Vectorizer
	log        logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	uowFactory unitofwork.RepositoryFactory,
	vectorizer *ingest.Vectorizer,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:     pubSub,
		uowFactory: uowFactory,
		vectorizer: vectorizer,
		log:        log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messageCh, err := cs.pubSub.Subscribe(ctx, TopicVectorizeMessage)
	if err != nil {
		return err
	}
	attachmentCh, err := cs.pubSub.Subscribe(ctx, TopicVectorizeAttachment)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messageCh {
			cs.processMessage(ctx, msg)
		}
	}()
	go func() {
		for msg := range attachmentCh {
			cs.processAttachment(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.VectorizeMessagePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.log.Error("Consumer", "Invalid vectorize message payload", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	reqLog, err := uow.RequestLogRepository().FindOne(ctx, specification.ByID{ID: payload.RequestLogId})
	if err != nil {
		cs.log.Error("Consumer", "Failed to load request log", map[string]interface{}{
			"log_id": payload.RequestLogId.String(),
			"error":  err.Error(),
		})
		msg.Nack() // Retriable
		return
	}
	if reqLog == nil || reqLog.Response == nil {
		// Deleted or never finalized, nothing to embed.
		msg.Ack()
		return
	}

	if err := cs.vectorizer.VectorizeMessage(ctx, reqLog); err != nil {
		cs.log.Error("Consumer", "Message vectorization failed", map[string]interface{}{
			"log_id": payload.RequestLogId.String(),
			"error":  err.Error(),
		})
		msg.Nack()
		return
	}
	msg.Ack()
}

func (cs *consumerService) processAttachment(ctx context.Context, msg *message.Message) {
	var payload dto.VectorizeAttachmentPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.log.Error("Consumer", "Invalid vectorize attachment payload", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	attachment, err := uow.FileAttachmentRepository().FindOne(ctx, specification.ByID{ID: payload.AttachmentId})
	if err != nil {
		cs.log.Error("Consumer", "Failed to load attachment", map[string]interface{}{
			"attachment_id": payload.AttachmentId.String(),
			"error":         err.Error(),
		})
		msg.Nack()
		return
	}
	if attachment == nil {
		msg.Ack()
		return
	}

	if err := cs.vectorizer.VectorizeAttachment(ctx, attachment); err != nil {
		cs.log.Error("Consumer", "Attachment vectorization failed", map[string]interface{}{
			"attachment_id": payload.AttachmentId.String(),
			"error":         err.Error(),
		})
		msg.Nack()
		return
	}
	msg.Ack()
}
