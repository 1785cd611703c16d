package repository

import (
	"context"

	"multiroom-chat/internal/domain"
)

// RoomRepository 定义了房间数据的存储和检索操作。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间。
	// 如果房间不存在，应返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Room, error)

	// FindByName 根据房间名称查找房间。
	// 如果房间不存在，应返回 ErrRoomNotFound。
	FindByName(ctx context.Context, name string) (*domain.Room, error)

	// FindAll 按名称排序返回全部房间。
	FindAll(ctx context.Context) ([]domain.Room, error)

	// Save 保存房间信息。
	// 名称冲突时应返回 ErrDuplicateEntry。
	Save(ctx context.Context, room *domain.Room) error
}
