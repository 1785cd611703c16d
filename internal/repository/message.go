package repository

import (
	"context"

	"multiroom-chat/internal/domain"
)

// MessageRepository 定义了消息的持久化操作。
// 消息只追加不删除，按 Timestamp 升序读取。
type MessageRepository interface {
	// Save 持久化一条消息。
	Save(ctx context.Context, message *domain.Message) error

	// FindByRoom 返回指定房间的全部消息 (携带作者用户名)，
	// 按 Timestamp 升序排列。
	FindByRoom(ctx context.Context, roomID uint) ([]domain.RoomMessage, error)
}
