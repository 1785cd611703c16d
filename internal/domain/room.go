package domain

import "time"

// Room 表示一个聊天房间。
// 房间按需创建，创建后不可变，当前范围内不会被删除。
type Room struct {
	ID        uint      `gorm:"primaryKey"`                                           // 房间唯一标识符 (主键)
	Name      string    `gorm:"type:varchar(191);uniqueIndex:idx_room_name;not null"` // 房间名称，必须唯一
	CreatedAt time.Time `gorm:"autoCreateTime"`                                       // 房间创建时间 (GORM 自动填充)
}
