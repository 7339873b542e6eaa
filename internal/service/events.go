package service

import (
	"context"

	"sudooom.date.chat/internal/model"
	"sudooom.date.chat/internal/proto"
)

// EventPublisher 会话变更推送
type EventPublisher interface {
	PublishConversationUpdate(ctx context.Context, userID int64, update *proto.ConversationUpdate) error
}

type noopPublisher struct{}

func (noopPublisher) PublishConversationUpdate(context.Context, int64, *proto.ConversationUpdate) error {
	return nil
}

// BuildConversationUpdate 以 userID 的视角构建会话变更事件
func BuildConversationUpdate(conv *model.Conversation, userID int64, reason string) *proto.ConversationUpdate {
	peer := conv.Peer(userID)
	update := &proto.ConversationUpdate{
		ConversationId: conv.ID,
		Reason:         reason,
		PeerId:         peer,
		Unread:         conv.Unread(userID),
		PeerUnread:     conv.Unread(peer),
		LastActivityAt: conv.LastActivityAt.UnixMilli(),
	}
	if last := conv.LastMessage(); last != nil {
		update.LastMessage = &proto.MessageView{
			MessageId:  last.ID,
			FromUserId: last.FromParty,
			ToUserId:   last.ToParty,
			Body:       last.Body,
			SentAt:     last.SentAt.UnixMilli(),
		}
	}
	return update
}
