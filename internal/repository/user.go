package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/model"
)

// UserRepository 用户仓库
type UserRepository struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

var _ UserStore = (*UserRepository)(nil)

// NewUserRepository 创建用户仓库
func NewUserRepository(db *pgxpool.Pool, timeout time.Duration) *UserRepository {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &UserRepository{db: db, timeout: timeout}
}

// FindByID 根据 ID 查找用户
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, nickname, balance, created_at
		FROM users WHERE id = $1
	`

	var user model.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Nickname,
		&user.Balance,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chatErrors.ErrUserNotFound
	}
	if err != nil {
		return nil, classify("find user", err)
	}

	return &user, nil
}

// DecrementBalance 扣减一条消息额度，余额为 0 时不扣减
func (r *UserRepository) DecrementBalance(ctx context.Context, id int64) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var balance int64
	err := r.db.QueryRow(ctx, `
		UPDATE users SET balance = balance - 1
		WHERE id = $1 AND balance > 0
		RETURNING balance
	`, id).Scan(&balance)
	if err == nil {
		return balance, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, classify("decrement balance", err)
	}

	// 没有更新到行：用户不存在或余额已经为 0
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return 0, false, err
	}
	return user.Balance, false, nil
}

// CreditBalance 增加消息额度
func (r *UserRepository) CreditBalance(ctx context.Context, id int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, chatErrors.ErrInvalidParams
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var balance int64
	err := r.db.QueryRow(ctx, `
		UPDATE users SET balance = balance + $2
		WHERE id = $1
		RETURNING balance
	`, id, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, chatErrors.ErrUserNotFound
	}
	if err != nil {
		return 0, classify("credit balance", err)
	}
	return balance, nil
}
