package repository

import (
	"context"
	"time"

	"multiroom-chat/internal/domain"
)

// MembershipRepository 定义了活跃成员关系 (ActiveMembership) 的存储操作。
// (user_id, room_id) 每对至多一行；Upsert 与 Delete 都是幂等的。
type MembershipRepository interface {
	// Upsert 插入或刷新一条成员关系。已存在时只更新 EnteredAt，
	// 不会产生重复行。
	Upsert(ctx context.Context, userID, roomID uint, enteredAt time.Time) error

	// Delete 删除一条成员关系。行不存在时不视为错误。
	Delete(ctx context.Context, userID, roomID uint) error

	// CountDistinctUsers 统计房间内拥有活跃成员关系的去重用户数。
	CountDistinctUsers(ctx context.Context, roomID uint) (int64, error)

	// FindAll 返回所有活跃成员关系，供后台对账任务使用。
	FindAll(ctx context.Context) ([]domain.ActiveMembership, error)
}
