package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/model"
	"sudooom.date.chat/internal/readstate"
	"sudooom.date.chat/internal/repository"
)

// PresenceConfig 上线通知配置
type PresenceConfig struct {
	SystemAccountID int64
	WelcomeMessage  string
	Timeout         time.Duration
}

// PresenceNotifier 处理用户上线信号：确保用户与系统账号之间有会话，首次接触时发送欢迎消息
//
// 每个信号独立处理，所有错误只记录日志不向上传播。
type PresenceNotifier struct {
	convs   repository.ConversationStore
	users   repository.UserStore
	online  OnlineRegistry
	retrier Retrier
	cfg     PresenceConfig
	group   singleflight.Group
	logger  *slog.Logger
}

// NewPresenceNotifier 创建上线通知处理器，online 可以为 nil
func NewPresenceNotifier(
	convs repository.ConversationStore,
	users repository.UserStore,
	online OnlineRegistry,
	retrier Retrier,
	cfg PresenceConfig,
) *PresenceNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &PresenceNotifier{
		convs:   convs,
		users:   users,
		online:  online,
		retrier: retrier,
		cfg:     cfg,
		logger:  slog.Default(),
	}
}

// presenceResult 一次上线信号的处理结果
type presenceResult struct {
	conv    *model.Conversation
	created bool
}

// HandlePresence 处理上线信号，返回与系统账号的会话以及是否为本次新建；失败时返回 nil
func (n *PresenceNotifier) HandlePresence(ctx context.Context, userID int64) (*model.Conversation, bool) {
	if userID <= 0 || userID == n.cfg.SystemAccountID {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	if n.online != nil {
		if err := n.online.MarkOnline(ctx, userID); err != nil {
			n.logger.Warn("Failed to mark user online", "userId", userID, "error", err)
		}
	}

	// 同一用户并发的重复信号合并为一次处理
	v, err, _ := n.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		return n.reconcile(ctx, userID)
	})
	if err != nil {
		if chatErrors.Is(err, chatErrors.ErrConfiguration) {
			n.logger.Error("System account not found, presence signal ignored",
				"userId", userID,
				"systemAccountId", n.cfg.SystemAccountID)
		} else {
			n.logger.Error("Failed to handle presence signal", "userId", userID, "error", err)
		}
		return nil, false
	}
	result := v.(presenceResult)
	return result.conv, result.created
}

// HandleOffline 处理下线信号
func (n *PresenceNotifier) HandleOffline(ctx context.Context, userID int64) {
	if n.online == nil || userID <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	if err := n.online.MarkOffline(ctx, userID); err != nil {
		n.logger.Warn("Failed to mark user offline", "userId", userID, "error", err)
	}
}

func (n *PresenceNotifier) reconcile(ctx context.Context, userID int64) (presenceResult, error) {
	systemID := n.cfg.SystemAccountID

	err := n.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := n.users.FindByID(ctx, systemID)
		return err
	})
	if chatErrors.Is(err, chatErrors.ErrUserNotFound) {
		return presenceResult{}, chatErrors.ErrConfiguration.Wrap(err)
	}
	if err != nil {
		return presenceResult{}, err
	}

	var conv *model.Conversation
	err = n.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		conv, err = n.convs.Find(ctx, userID, systemID)
		return err
	})
	switch {
	case err == nil:
		return n.acknowledge(ctx, conv)
	case !chatErrors.Is(err, chatErrors.ErrConversationNotFound):
		return presenceResult{}, err
	}

	seed := &model.Conversation{PartyA: systemID, PartyB: userID}
	readstate.Initial(seed, systemID)
	welcome := &model.Message{
		FromParty: systemID,
		ToParty:   userID,
		Body:      n.cfg.WelcomeMessage,
	}

	var created bool
	err = n.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		conv, created, err = n.convs.FindOrCreate(ctx, seed, welcome)
		return err
	})
	if err != nil {
		return presenceResult{}, err
	}
	if !created {
		// 并发的另一个信号已经创建
		return n.acknowledge(ctx, conv)
	}

	n.logger.Info("Welcome conversation created",
		"userId", userID,
		"conversationId", conv.ID)
	return presenceResult{conv: conv, created: true}, nil
}

// acknowledge 清除系统账号一侧的未读标记，已读时不写入
func (n *PresenceNotifier) acknowledge(ctx context.Context, conv *model.Conversation) (presenceResult, error) {
	systemID := n.cfg.SystemAccountID
	if !conv.Unread(systemID) {
		return presenceResult{conv: conv}, nil
	}

	var updated *model.Conversation
	err := n.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		updated, err = n.convs.Update(ctx, conv.ID, func(c *model.Conversation) bool {
			return readstate.OnView(c, systemID)
		})
		return err
	})
	if err != nil {
		return presenceResult{}, err
	}
	return presenceResult{conv: updated}, nil
}
