package handler

import (
	"context"
	"log/slog"

	"sudooom.date.chat/internal/proto"
	"sudooom.date.chat/internal/service"
)

// EventHandler 实时连接上行事件处理器
type EventHandler struct {
	conversationService *service.ConversationService
	logger              *slog.Logger
}

// NewEventHandler 创建事件处理器
func NewEventHandler(conversationService *service.ConversationService) *EventHandler {
	return &EventHandler{
		conversationService: conversationService,
		logger:              slog.Default(),
	}
}

// HandleUserOnline 处理用户上线
func (h *EventHandler) HandleUserOnline(ctx context.Context, event *proto.UserOnline, accessNodeId string) {
	h.logger.Info("User online",
		"userId", event.UserId,
		"platform", event.Platform,
		"accessNodeId", accessNodeId)

	h.conversationService.HandlePresence(ctx, event.UserId)
}

// HandleUserOffline 处理用户下线
func (h *EventHandler) HandleUserOffline(ctx context.Context, event *proto.UserOffline, accessNodeId string) {
	h.conversationService.HandleOffline(ctx, event.UserId)

	h.logger.Info("User offline",
		"userId", event.UserId,
		"accessNodeId", accessNodeId)
}

// HandleConversationRead 处理会话已读
func (h *EventHandler) HandleConversationRead(ctx context.Context, event *proto.ConversationRead) {
	if _, err := h.conversationService.MarkViewed(ctx, event.ConversationId, event.UserId); err != nil {
		h.logger.Warn("Failed to mark conversation viewed",
			"userId", event.UserId,
			"conversationId", event.ConversationId,
			"error", err)
		return
	}
	h.logger.Debug("Conversation marked viewed",
		"userId", event.UserId,
		"conversationId", event.ConversationId)
}
