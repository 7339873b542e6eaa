package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"sudooom.date.chat/internal/proto"
)

// EventPublisher 会话事件发布器
type EventPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewEventPublisher 创建事件发布器
func NewEventPublisher(nc *nats.Conn) *EventPublisher {
	return &EventPublisher{
		nc:     nc,
		logger: slog.Default(),
	}
}

// PublishConversationUpdate 推送会话变更到用户的下行 Subject
func (p *EventPublisher) PublishConversationUpdate(ctx context.Context, userID int64, update *proto.ConversationUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := &proto.DownstreamMessage{
		ToUserId:           userID,
		ConversationUpdate: update,
	}
	data, err := json.Marshal(message)
	if err != nil {
		p.logger.Error("Failed to marshal downstream message", "error", err)
		return err
	}

	subject := BuildUserDownstreamSubject(userID)
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish conversation update", "userId", userID, "error", err)
		return err
	}

	p.logger.Debug("Published conversation update",
		"userId", userID,
		"conversationId", update.ConversationId,
		"reason", update.Reason)
	return nil
}
