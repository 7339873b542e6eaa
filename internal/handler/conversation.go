package handler

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/middleware"
	"sudooom.date.chat/internal/model"
	"sudooom.date.chat/internal/service"
	"sudooom.date.chat/pkg/response"
)

// StartChatRequest 发起会话请求
type StartChatRequest struct {
	RecipientID int64 `json:"recipientId" binding:"required"`
}

// PostMessageRequest 发送消息请求
type PostMessageRequest struct {
	Body string `json:"body"`
}

// MessageView 消息
type MessageView struct {
	ID        int64     `json:"id"`
	FromParty int64     `json:"fromParty"`
	ToParty   int64     `json:"toParty"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sentAt"`
}

// ConversationView 以当前用户视角展示的会话
type ConversationView struct {
	ID             int64         `json:"id"`
	PeerID         int64         `json:"peerId"`
	Unread         bool          `json:"unread"`
	PeerUnread     bool          `json:"peerUnread"`
	PeerOnline     bool          `json:"peerOnline"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	CreatedAt      time.Time     `json:"createdAt"`
	Messages       []MessageView `json:"messages,omitempty"`
}

func toConversationView(conv *model.Conversation, viewer int64) ConversationView {
	peer := conv.Peer(viewer)
	view := ConversationView{
		ID:             conv.ID,
		PeerID:         peer,
		Unread:         conv.Unread(viewer),
		PeerUnread:     conv.Unread(peer),
		LastActivityAt: conv.LastActivityAt,
		CreatedAt:      conv.CreatedAt,
	}
	for _, m := range conv.Messages {
		view.Messages = append(view.Messages, MessageView{
			ID:        m.ID,
			FromParty: m.FromParty,
			ToParty:   m.ToParty,
			Body:      m.Body,
			SentAt:    m.SentAt,
		})
	}
	return view
}

// ConversationHandler 私信会话处理器
type ConversationHandler struct {
	conversationService *service.ConversationService
	online              service.OnlineRegistry
	logger              *slog.Logger
}

// NewConversationHandler 创建会话处理器，online 为 nil 时不返回对方在线状态
func NewConversationHandler(conversationService *service.ConversationService, online service.OnlineRegistry) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		online:              online,
		logger:              slog.Default(),
	}
}

// StartChat 发起或恢复会话
// POST /api/v1/conversations
func (h *ConversationHandler) StartChat(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req StartChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, chatErrors.CodeInvalidParams, err.Error())
		return
	}

	conv, err := h.conversationService.StartOrResumeChat(c.Request.Context(), userID, req.RecipientID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, toConversationView(conv, userID))
}

// ListConversations 会话列表
// GET /api/v1/conversations
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := middleware.GetUserID(c)
	ctx := c.Request.Context()

	list, err := h.conversationService.ListConversations(ctx, userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	views := make([]ConversationView, 0, len(list))
	peers := make([]int64, 0, len(list))
	for i := range list {
		view := toConversationView(&list[i], userID)
		views = append(views, view)
		peers = append(peers, view.PeerID)
	}

	if h.online != nil && len(peers) > 0 {
		status, err := h.online.OnlineStatus(ctx, peers...)
		if err != nil {
			// 在线状态只是附加信息
			h.logger.Warn("Failed to load peer online status", "userId", userID, "error", err)
		} else {
			for i := range views {
				views[i].PeerOnline = status[views[i].PeerID]
			}
		}
	}

	response.Success(c, gin.H{"list": views})
}

// GetConversation 会话详情（包含消息）
// GET /api/v1/conversations/:id
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conversationID, ok := parseID(c)
	if !ok {
		return
	}

	conv, err := h.conversationService.GetConversation(c.Request.Context(), conversationID, userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, toConversationView(conv, userID))
}

// PostMessage 发送消息
// POST /api/v1/conversations/:id/messages
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conversationID, ok := parseID(c)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, chatErrors.CodeInvalidParams, err.Error())
		return
	}

	conv, err := h.conversationService.PostMessage(c.Request.Context(), conversationID, userID, req.Body)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Created(c, toConversationView(conv, userID))
}

// MarkViewed 标记会话已读
// POST /api/v1/conversations/:id/view
func (h *ConversationHandler) MarkViewed(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conversationID, ok := parseID(c)
	if !ok {
		return
	}

	conv, err := h.conversationService.MarkViewed(c.Request.Context(), conversationID, userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, toConversationView(conv, userID))
}

// DeleteConversation 删除会话
// DELETE /api/v1/conversations/:id
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conversationID, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.conversationService.DeleteConversation(c.Request.Context(), conversationID, userID); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, nil)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ErrorWithMsg(c, chatErrors.CodeInvalidParams, "无效的会话 ID")
		return 0, false
	}
	return id, true
}
