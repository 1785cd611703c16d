// Package dto 定义了 WebSocket 连接上双向传输的数据结构。
package dto

import "encoding/json"

// Envelope 是 WebSocket 上所有消息的外层信封:
// {"event": "<name>", "data": {...}}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// --- 客户端 → 服务端 的事件载荷 ---

// JoinRoomPayload 表示 join_room_event 的数据。
type JoinRoomPayload struct {
	RoomID uint `json:"room_id"`
}

// LeaveRoomPayload 表示 leave_room_event 的数据。
type LeaveRoomPayload struct {
	RoomID uint `json:"room_id"`
}

// SendMessagePayload 表示 send_message 的数据。
type SendMessagePayload struct {
	RoomID  uint   `json:"room_id"`
	Message string `json:"message"`
}

// ActiveUsersPayload 表示 get_active_users 的数据。
type ActiveUsersPayload struct {
	RoomID uint `json:"room_id"`
}

// --- 服务端 → 客户端 的事件载荷 ---

// UserRoomEventPayload 表示 user_joined_room / user_left_room 的数据。
type UserRoomEventPayload struct {
	Username  string `json:"username"`
	RoomID    uint   `json:"room_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ChatMessagePayload 表示 new_message 的数据。
// Kind 在线路上序列化为 "type"，与消息记录的 text/image 一致。
type ChatMessagePayload struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	RoomID    uint   `json:"room_id"`
	Kind      string `json:"type"`
}

// ActiveUsersUpdatePayload 表示 active_users_update 的数据，仅回复请求者。
type ActiveUsersUpdatePayload struct {
	RoomID uint  `json:"room_id"`
	Count  int64 `json:"count"`
}

// ErrorPayload 表示发送给客户端的错误消息。
type ErrorPayload struct {
	Message string `json:"message"`
}
