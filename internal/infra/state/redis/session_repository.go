// Package redisstate 提供了 SessionStateRepository 接口的 Redis 实现。
package redisstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// sessionTTL 是房间绑定记录的过期时间。连接正常离开时会显式清除，
// TTL 只是防止极端情况下的残留键。
const sessionTTL = 24 * time.Hour

// RedisSessionRepository 是 SessionStateRepository 接口的 Redis 实现。
// 它充当连接会话上下文：记录每个用户当前绑定的房间，
// 供重连 (页面刷新) 后自动重放 Join 使用。
type RedisSessionRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisSessionRepository 创建 RedisSessionRepository 实例
func NewRedisSessionRepository(client *redis.Client, keyPrefix string) *RedisSessionRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisSessionRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "chat:" // 默认前缀
	}
	return &RedisSessionRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisSessionRepository) currentRoomKey(userID uint) string {
	return fmt.Sprintf("%suser:%d:current_room", r.keyPrefix, userID)
}

// SetCurrentRoom 记录用户当前绑定的房间
func (r *RedisSessionRepository) SetCurrentRoom(ctx context.Context, userID, roomID uint) error {
	key := r.currentRoomKey(userID)
	err := r.client.Set(ctx, key, strconv.FormatUint(uint64(roomID), 10), sessionTTL).Err()
	if err != nil {
		return fmt.Errorf("redis: set current room for user %d on key %s: %w", userID, key, err)
	}
	return nil
}

// GetCurrentRoom 返回用户当前绑定的房间 ID；键不存在时返回 (0, false, nil)
func (r *RedisSessionRepository) GetCurrentRoom(ctx context.Context, userID uint) (uint, bool, error) {
	key := r.currentRoomKey(userID)
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis: get current room for user %d from %s: %w", userID, key, err)
	}
	roomID, parseErr := strconv.ParseUint(val, 10, 32)
	if parseErr != nil {
		return 0, false, fmt.Errorf("redis: parse current room '%s' for user %d from %s: %w", val, userID, key, parseErr)
	}
	return uint(roomID), true, nil
}

// ClearCurrentRoom 清除用户的房间绑定 (幂等)
func (r *RedisSessionRepository) ClearCurrentRoom(ctx context.Context, userID uint) error {
	key := r.currentRoomKey(userID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: clear current room for user %d on key %s: %w", userID, key, err)
	}
	return nil
}
