package service

import (
	"context"
	"log/slog"

	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/repository"
)

// BalanceMeter 消息额度计量：余额为 0 时禁止发送，发送成功后扣减 1
type BalanceMeter struct {
	users  repository.UserStore
	logger *slog.Logger
}

// NewBalanceMeter 创建余额计量器
func NewBalanceMeter(users repository.UserStore) *BalanceMeter {
	return &BalanceMeter{
		users:  users,
		logger: slog.Default(),
	}
}

// CanSend 余额大于 0 才允许发送
func (m *BalanceMeter) CanSend(ctx context.Context, userID int64) (bool, error) {
	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.Balance > 0, nil
}

// Check 余额不足时返回 ErrInsufficientBalance
func (m *BalanceMeter) Check(ctx context.Context, userID int64) error {
	ok, err := m.CanSend(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return chatErrors.ErrInsufficientBalance
	}
	return nil
}

// Charge 扣减一条消息额度，只能在消息已经持久化之后调用
//
// 并发发送时余额可能已被扣到 0，此时不再扣减（对用户有利的方向）。
func (m *BalanceMeter) Charge(ctx context.Context, userID int64) (int64, error) {
	remaining, charged, err := m.users.DecrementBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !charged {
		m.logger.Warn("Balance already exhausted at charge time", "userId", userID)
	}
	return remaining, nil
}

// Balance 当前余额
func (m *BalanceMeter) Balance(ctx context.Context, userID int64) (int64, error) {
	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}
