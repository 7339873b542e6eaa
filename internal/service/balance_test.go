package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/model"
	"sudooom.date.chat/internal/repository"
)

func TestBalanceMeter(t *testing.T) {
	users := repository.NewMemoryUserStore(model.User{ID: 1, Balance: 1})
	meter := NewBalanceMeter(users)
	ctx := context.Background()

	ok, err := meter.CanSend(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, meter.Check(ctx, 1))

	remaining, err := meter.Charge(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	ok, err = meter.CanSend(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, chatErrors.Is(meter.Check(ctx, 1), chatErrors.ErrInsufficientBalance))

	// 余额为 0 时扣费不会变成负数
	remaining, err = meter.Charge(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	balance, err := meter.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	_, err = meter.CanSend(ctx, 2)
	assert.True(t, chatErrors.Is(err, chatErrors.ErrUserNotFound))
}
