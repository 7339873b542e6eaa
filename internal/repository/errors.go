package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	chatErrors "sudooom.date.chat/internal/errors"
)

// PostgreSQL 错误码
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgAdminShutdown        = "57P01"
	pgCannotConnectNow     = "57P03"
)

// contextError 超时视为可重试的存储错误，调用方主动取消则原样返回
func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return chatErrors.ErrTransientStore.Wrap(err)
	}
	return err
}

// classify 把驱动错误归类为业务错误
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *chatErrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return chatErrors.ErrTransientStore.Wrap(fmt.Errorf("%s: %w", op, err))
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return chatErrors.ErrTransientStore.Wrap(fmt.Errorf("%s: %w", op, err))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return chatErrors.ErrConflict.Wrap(fmt.Errorf("%s: %w", op, err))
		case pgErr.Code == pgSerializationFailure,
			pgErr.Code == pgDeadlockDetected,
			pgErr.Code == pgAdminShutdown,
			pgErr.Code == pgCannotConnectNow,
			len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return chatErrors.ErrTransientStore.Wrap(fmt.Errorf("%s: %w", op, err))
		}
	}

	if pgconn.SafeToRetry(err) {
		return chatErrors.ErrTransientStore.Wrap(fmt.Errorf("%s: %w", op, err))
	}

	return fmt.Errorf("%s: %w", op, err)
}
