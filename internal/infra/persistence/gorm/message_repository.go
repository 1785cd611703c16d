package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"multiroom-chat/internal/domain"
)

// GormMessageRepository 是 MessageRepository 接口的 GORM 实现
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GormMessageRepository 实例
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMessageRepository")
	}
	return &GormMessageRepository{db: db}
}

// Save 实现持久化一条消息
func (r *GormMessageRepository) Save(ctx context.Context, message *domain.Message) error {
	err := r.db.WithContext(ctx).Create(message).Error
	if err != nil {
		return fmt.Errorf("gorm: save message (room: %d, user: %d): %w", message.RoomID, message.UserID, err)
	}
	return nil
}

// FindByRoom 实现按 Timestamp 升序返回房间的全部消息，携带作者用户名
func (r *GormMessageRepository) FindByRoom(ctx context.Context, roomID uint) ([]domain.RoomMessage, error) {
	var msgs []domain.RoomMessage
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("messages.content, users.username, messages.kind, messages.timestamp").
		Joins("JOIN users ON users.id = messages.user_id").
		Where("messages.room_id = ?", roomID).
		Order("messages.timestamp ASC").
		Scan(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find messages for room %d: %w", roomID, err)
	}
	return msgs, nil
}
