package gormpersistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"multiroom-chat/internal/domain"
)

// GormMembershipRepository 是 MembershipRepository 接口的 GORM 实现。
// (user_id, room_id) 上的唯一索引配合 ON CONFLICT 实现
// insert-or-replace 语义：重复加入只刷新 entered_at。
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewGormMembershipRepository 创建 GormMembershipRepository 实例
func NewGormMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMembershipRepository")
	}
	return &GormMembershipRepository{db: db}
}

// Upsert 实现插入或刷新一条成员关系 (幂等)
func (r *GormMembershipRepository) Upsert(ctx context.Context, userID, roomID uint, enteredAt time.Time) error {
	row := domain.ActiveMembership{
		UserID:    userID,
		RoomID:    roomID,
		EnteredAt: enteredAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "room_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"entered_at": enteredAt}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("gorm: upsert membership (user: %d, room: %d): %w", userID, roomID, err)
	}
	return nil
}

// Delete 实现删除一条成员关系 (幂等，行不存在不报错)
func (r *GormMembershipRepository) Delete(ctx context.Context, userID, roomID uint) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Delete(&domain.ActiveMembership{}).Error
	if err != nil {
		return fmt.Errorf("gorm: delete membership (user: %d, room: %d): %w", userID, roomID, err)
	}
	return nil
}

// CountDistinctUsers 实现统计房间内的去重活跃用户数
func (r *GormMembershipRepository) CountDistinctUsers(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ActiveMembership{}).
		Where("room_id = ?", roomID).
		Distinct("user_id").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count active users for room %d: %w", roomID, err)
	}
	return count, nil
}

// FindAll 实现返回所有活跃成员关系
func (r *GormMembershipRepository) FindAll(ctx context.Context) ([]domain.ActiveMembership, error) {
	var rows []domain.ActiveMembership
	err := r.db.WithContext(ctx).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find all memberships: %w", err)
	}
	return rows, nil
}
