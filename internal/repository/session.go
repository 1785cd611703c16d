package repository

import "context"

// SessionStateRepository 定义了连接会话上下文的存储操作。
// 记录每个用户 "当前绑定的房间"，用于页面刷新/重连后自动重放 Join。
type SessionStateRepository interface {
	// SetCurrentRoom 记录用户当前绑定的房间。
	SetCurrentRoom(ctx context.Context, userID, roomID uint) error

	// GetCurrentRoom 返回用户当前绑定的房间 ID。
	// 第二个返回值为 false 表示没有绑定记录。
	GetCurrentRoom(ctx context.Context, userID uint) (uint, bool, error)

	// ClearCurrentRoom 清除用户的房间绑定。记录不存在时不视为错误。
	ClearCurrentRoom(ctx context.Context, userID uint) error
}
