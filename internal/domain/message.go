package domain

import "time"

// 消息类型。图片消息的 Content 是存储引用 URL，不是原始字节。
const (
	MessageKindText  = "text"
	MessageKindImage = "image"
)

// Message 表示一条持久化的聊天消息。消息只追加，不会被修改或删除。
type Message struct {
	ID        uint      `gorm:"primaryKey"`                              // 消息唯一标识符 (主键)
	RoomID    uint      `gorm:"index;not null"`                          // 所属房间
	UserID    uint      `gorm:"index;not null"`                          // 发送者
	Content   string    `gorm:"type:text;not null"`                      // 文本内容或图片 URL
	Kind      string    `gorm:"type:varchar(10);not null;default:text"`  // text 或 image
	Timestamp time.Time `gorm:"index;not null"`                          // 持久化时刻，历史按此升序返回
}

// RoomMessage 是历史查询的读取视图：消息连同作者用户名。
// JSON 字段名与 WebSocket 广播的 new_message 载荷保持一致。
type RoomMessage struct {
	Content   string    `json:"message"`
	Username  string    `json:"username"`
	Kind      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}
