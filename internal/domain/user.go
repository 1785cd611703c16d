// Package domain 定义了应用程序的核心数据结构 (数据库模型)。
package domain

import "time"

// User 表示聊天系统中的一个用户。
// 用户由外部的注册/登录流程创建，核心聊天逻辑只读消费。
type User struct {
	ID        uint      `gorm:"primaryKey"`                                          // 用户唯一标识符 (主键)
	Username  string    `gorm:"type:varchar(191);uniqueIndex:idx_username;not null"` // 用户名，必须唯一
	Password  string    `gorm:"type:text;not null"`                                  // 存储的是 bcrypt 哈希后的密码
	CreatedAt time.Time `gorm:"autoCreateTime"`                                      // 记录创建时间 (GORM 自动填充)
	UpdatedAt time.Time `gorm:"autoUpdateTime"`                                      // 记录最后更新时间 (GORM 自动填充)
}
