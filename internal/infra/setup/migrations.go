package setup

import (
	"fmt"

	"gorm.io/gorm"

	"multiroom-chat/internal/domain"
)

// MigrateDB 迁移全部数据库表结构。
// users/rooms/messages 的唯一索引和普通索引由模型上的 GORM tag 定义；
// active_memberships 上 (user_id, room_id) 的唯一索引是
// 成员关系 upsert-or-replace 语义的基础。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	err := db.AutoMigrate(
		&domain.User{},
		&domain.Room{},
		&domain.Message{},
		&domain.ActiveMembership{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	return nil
}
