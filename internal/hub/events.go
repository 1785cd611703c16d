package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"multiroom-chat/internal/domain"
	"multiroom-chat/internal/dto"
)

// 客户端 → 服务端 的事件名
const (
	EventJoinRoom       = "join_room_event"
	EventLeaveRoom      = "leave_room_event"
	EventSendMessage    = "send_message"
	EventGetActiveUsers = "get_active_users"
)

// 服务端 → 客户端 的事件名
const (
	EventUserJoined  = "user_joined_room"
	EventUserLeft    = "user_left_room"
	EventNewMessage  = "new_message"
	EventActiveUsers = "active_users_update"
	EventError       = "error"
)

// eventTimeFormat 是事件载荷中时间戳的格式。
const eventTimeFormat = "2006-01-02 15:04:05"

// marshalEvent 将事件名和载荷序列化为线路上的信封格式。
func marshalEvent(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data for %s: %w", event, err)
	}
	return json.Marshal(dto.Envelope{Event: event, Data: raw})
}

// NewUserJoinedEvent 构造 user_joined_room 的广播字节。
// HTTP 触发的加入和 socket 层的加入共用这一载荷。
func NewUserJoinedEvent(username string, roomID uint) ([]byte, error) {
	return marshalEvent(EventUserJoined, dto.UserRoomEventPayload{
		Username:  username,
		RoomID:    roomID,
		Message:   fmt.Sprintf("%s entered the room.", username),
		Timestamp: time.Now().Format(eventTimeFormat),
	})
}

// NewUserLeftEvent 构造 user_left_room 的广播字节。
func NewUserLeftEvent(username string, roomID uint) ([]byte, error) {
	return marshalEvent(EventUserLeft, dto.UserRoomEventPayload{
		Username:  username,
		RoomID:    roomID,
		Message:   fmt.Sprintf("%s left the room.", username),
		Timestamp: time.Now().Format(eventTimeFormat),
	})
}

// NewChatMessageEvent 构造 new_message 的广播字节。
// 文本消息和图片消息走同一条广播路径，只是 type 不同。
func NewChatMessageEvent(username string, message *domain.Message) ([]byte, error) {
	return marshalEvent(EventNewMessage, dto.ChatMessagePayload{
		Username:  username,
		Message:   message.Content,
		Timestamp: message.Timestamp.Format(eventTimeFormat),
		RoomID:    message.RoomID,
		Kind:      message.Kind,
	})
}

// newActiveUsersEvent 构造 active_users_update 的回复字节。
func newActiveUsersEvent(roomID uint, count int64) ([]byte, error) {
	return marshalEvent(EventActiveUsers, dto.ActiveUsersUpdatePayload{
		RoomID: roomID,
		Count:  count,
	})
}

// newErrorEvent 构造 error 的回复字节。
func newErrorEvent(message string) ([]byte, error) {
	return marshalEvent(EventError, dto.ErrorPayload{Message: message})
}
