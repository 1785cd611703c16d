package domain

import "time"

// ActiveMembership 记录一条 "用户当前活跃在某房间" 的成员关系。
// (UserID, RoomID) 上的唯一索引保证每对至多一行，重复加入只会
// 刷新 EnteredAt，在线人数因此不会被重连放大。
type ActiveMembership struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"uniqueIndex:idx_user_room;not null"`
	RoomID    uint      `gorm:"uniqueIndex:idx_user_room;not null"`
	EnteredAt time.Time `gorm:"not null"` // 最近一次进入房间的时间
}
