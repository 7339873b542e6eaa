package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// OnlineKeyPrefix 在线状态 Redis Key 前缀
	OnlineKeyPrefix = "chat:user:online:"

	// DefaultOnlineTTL 在线状态默认 TTL，在线期间每次心跳/上线都会刷新
	DefaultOnlineTTL = 10 * time.Minute
)

// BuildOnlineKey 构建在线状态 Key
func BuildOnlineKey(userID int64) string {
	return fmt.Sprintf("%s%d", OnlineKeyPrefix, userID)
}

// OnlineRegistry 用户在线状态
type OnlineRegistry interface {
	MarkOnline(ctx context.Context, userID int64) error
	MarkOffline(ctx context.Context, userID int64) error
	OnlineStatus(ctx context.Context, userIDs ...int64) (map[int64]bool, error)
}

// RedisOnlineRegistry 基于 Redis 的在线状态，Key 过期即视为离线
type RedisOnlineRegistry struct {
	redisClient *redis.Client
	ttl         time.Duration
	logger      *slog.Logger
}

var _ OnlineRegistry = (*RedisOnlineRegistry)(nil)

// NewRedisOnlineRegistry 创建在线状态注册表
func NewRedisOnlineRegistry(redisClient *redis.Client, ttl time.Duration) *RedisOnlineRegistry {
	if ttl <= 0 {
		ttl = DefaultOnlineTTL
	}
	return &RedisOnlineRegistry{
		redisClient: redisClient,
		ttl:         ttl,
		logger:      slog.Default(),
	}
}

// MarkOnline 标记在线并刷新 TTL
func (r *RedisOnlineRegistry) MarkOnline(ctx context.Context, userID int64) error {
	err := r.redisClient.Set(ctx, BuildOnlineKey(userID), time.Now().UnixMilli(), r.ttl).Err()
	if err == nil {
		r.logger.Debug("User marked online", "userId", userID)
	}
	return err
}

// MarkOffline 移除在线状态
func (r *RedisOnlineRegistry) MarkOffline(ctx context.Context, userID int64) error {
	err := r.redisClient.Del(ctx, BuildOnlineKey(userID)).Err()
	if err == nil {
		r.logger.Debug("User marked offline", "userId", userID)
	}
	return err
}

// OnlineStatus 批量查询在线状态
func (r *RedisOnlineRegistry) OnlineStatus(ctx context.Context, userIDs ...int64) (map[int64]bool, error) {
	result := make(map[int64]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	pipe := r.redisClient.Pipeline()
	cmds := make(map[int64]*redis.IntCmd, len(userIDs))
	for _, id := range userIDs {
		cmds[id] = pipe.Exists(ctx, BuildOnlineKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	for id, cmd := range cmds {
		result[id] = cmd.Val() > 0
	}
	return result, nil
}
