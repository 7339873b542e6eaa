package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/model"
	"sudooom.date.chat/internal/proto"
	"sudooom.date.chat/internal/readstate"
	"sudooom.date.chat/internal/repository"
)

// ConversationService 私信会话服务
type ConversationService struct {
	convs     repository.ConversationStore
	users     repository.UserStore
	balance   *BalanceMeter
	presence  *PresenceNotifier
	publisher EventPublisher
	retrier   Retrier
	now       func() time.Time
	logger    *slog.Logger
}

// NewConversationService 创建会话服务，publisher 可以为 nil
func NewConversationService(
	convs repository.ConversationStore,
	users repository.UserStore,
	balance *BalanceMeter,
	presence *PresenceNotifier,
	publisher EventPublisher,
	retrier Retrier,
) *ConversationService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &ConversationService{
		convs:     convs,
		users:     users,
		balance:   balance,
		presence:  presence,
		publisher: publisher,
		retrier:   retrier,
		now:       time.Now,
		logger:    slog.Default(),
	}
}

// StartOrResumeChat 查找或创建两人之间的会话，已存在时原样返回
func (s *ConversationService) StartOrResumeChat(ctx context.Context, initiator, recipient int64) (*model.Conversation, error) {
	if initiator == recipient {
		return nil, chatErrors.ErrCannotChatSelf
	}
	if initiator <= 0 || recipient <= 0 {
		return nil, chatErrors.ErrInvalidParams
	}

	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := s.users.FindByID(ctx, recipient)
		return err
	})
	if err != nil {
		return nil, err
	}

	seed := &model.Conversation{PartyA: initiator, PartyB: recipient}
	readstate.Initial(seed, initiator)

	var conv *model.Conversation
	var created bool
	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		conv, created, err = s.convs.FindOrCreate(ctx, seed, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.logger.Info("Conversation created",
			"conversationId", conv.ID,
			"initiator", initiator,
			"recipient", recipient)
		s.notifyParties(ctx, conv, proto.UpdateReasonCreated)
	}
	return conv, nil
}

// PostMessage 发送消息：校验内容、参与方和余额，追加成功后扣减额度
func (s *ConversationService) PostMessage(ctx context.Context, conversationID, sender int64, body string) (*model.Conversation, error) {
	if strings.TrimSpace(body) == "" {
		return nil, chatErrors.ErrEmptyBody
	}

	conv, err := s.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParty(sender) {
		return nil, chatErrors.ErrForbidden
	}

	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.balance.Check(ctx, sender)
	})
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		FromParty: sender,
		ToParty:   conv.Peer(sender),
		Body:      body,
		SentAt:    s.now(),
	}
	// 追加不重试：超时的写入可能已经提交
	updated, err := s.convs.AppendMessage(ctx, conversationID, msg, func(c *model.Conversation) {
		readstate.OnAppend(c, sender)
	})
	if err != nil {
		return nil, err
	}

	// 扣费失败按有利于用户的方向处理
	if _, err := s.balance.Charge(ctx, sender); err != nil {
		s.logger.Error("Failed to charge balance after append",
			"userId", sender,
			"conversationId", conversationID,
			"messageId", msg.ID,
			"error", err)
	}

	s.notifyParties(ctx, updated, proto.UpdateReasonMessage)
	return updated, nil
}

// MarkViewed 查看会话，只清除查看者的未读标记
func (s *ConversationService) MarkViewed(ctx context.Context, conversationID, viewer int64) (*model.Conversation, error) {
	conv, err := s.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParty(viewer) {
		return nil, chatErrors.ErrForbidden
	}

	var changed bool
	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		conv, err = s.convs.Update(ctx, conversationID, func(c *model.Conversation) bool {
			changed = readstate.OnView(c, viewer)
			return changed
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.notifyParties(ctx, conv, proto.UpdateReasonRead)
	}
	return conv, nil
}

// ListConversations 用户的全部会话，按最后活跃时间倒序
func (s *ConversationService) ListConversations(ctx context.Context, userID int64) ([]model.Conversation, error) {
	var list []model.Conversation
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		list, err = s.convs.ListByParty(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GetConversation 获取会话及全部消息，只有参与方可以查看
func (s *ConversationService) GetConversation(ctx context.Context, conversationID, userID int64) (*model.Conversation, error) {
	conv, err := s.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParty(userID) {
		return nil, chatErrors.ErrForbidden
	}
	return conv, nil
}

// DeleteConversation 删除会话及全部消息，只有参与方可以删除
func (s *ConversationService) DeleteConversation(ctx context.Context, conversationID, actor int64) error {
	conv, err := s.load(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParty(actor) {
		return chatErrors.ErrForbidden
	}

	if err := s.convs.Delete(ctx, conversationID); err != nil {
		return err
	}

	s.logger.Info("Conversation deleted",
		"conversationId", conversationID,
		"actor", actor)
	s.notifyParties(ctx, conv, proto.UpdateReasonDeleted)
	return nil
}

// HandlePresence 用户上线，交给 PresenceNotifier 处理；不返回错误
func (s *ConversationService) HandlePresence(ctx context.Context, userID int64) {
	conv, created := s.presence.HandlePresence(ctx, userID)
	if conv == nil {
		return
	}
	reason := proto.UpdateReasonRead
	if created {
		reason = proto.UpdateReasonCreated
	}
	if err := s.publisher.PublishConversationUpdate(ctx, userID, BuildConversationUpdate(conv, userID, reason)); err != nil {
		s.logger.Warn("Failed to publish welcome conversation", "userId", userID, "error", err)
	}
}

// HandleOffline 用户下线
func (s *ConversationService) HandleOffline(ctx context.Context, userID int64) {
	s.presence.HandleOffline(ctx, userID)
}

func (s *ConversationService) load(ctx context.Context, conversationID int64) (*model.Conversation, error) {
	var conv *model.Conversation
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		conv, err = s.convs.Get(ctx, conversationID)
		return err
	})
	return conv, err
}

// notifyParties 推送失败只记录日志
func (s *ConversationService) notifyParties(ctx context.Context, conv *model.Conversation, reason string) {
	for _, userID := range []int64{conv.PartyA, conv.PartyB} {
		update := BuildConversationUpdate(conv, userID, reason)
		if err := s.publisher.PublishConversationUpdate(ctx, userID, update); err != nil {
			s.logger.Warn("Failed to publish conversation update",
				"userId", userID,
				"conversationId", conv.ID,
				"reason", reason,
				"error", err)
		}
	}
}
