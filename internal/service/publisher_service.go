package service

import (
	"encoding/json"

	"ai-assistant-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const (
	TopicVectorizeMessage    = "VECTORIZE_MESSAGE"
	TopicVectorizeAttachment = "VECTORIZE_ATTACHMENT"
)

type IPublisherService interface {
	PublishVectorizeMessage(logId uuid.UUID) error
	PublishVectorizeAttachment(attachmentId uuid.UUID) error
}

type publisherService struct {
	pubSub *gochannel.GoChannel
}

func NewPublisherService(pubSub *gochannel.GoChannel) IPublisherService {
	return &publisherService{pubSub: pubSub}
}

func (s *publisherService) PublishVectorizeMessage(logId uuid.UUID) error {
	payload, err := json.Marshal(dto.VectorizeMessagePayload{RequestLogId: logId})
	if err != nil {
		return err
	}
	return s.pubSub.Publish(TopicVectorizeMessage, message.NewMessage(watermill.NewUUID(), payload))
}

func (s *publisherService) PublishVectorizeAttachment(attachmentId uuid.UUID) error {
	payload, err := json.Marshal(dto.VectorizeAttachmentPayload{AttachmentId: attachmentId})
	if err != nil {
		return err
	}
	return s.pubSub.Publish(TopicVectorizeAttachment, message.NewMessage(watermill.NewUUID(), payload))
}
