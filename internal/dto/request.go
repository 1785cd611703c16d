package dto

// RegisterRequest 表示用户注册的请求体。
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// LoginRequest 表示用户登录的请求体。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CreateRoomRequest 表示创建房间的请求体。
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// RoomResponse 表示房间列表条目，附带当前在线人数。
type RoomResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	ActiveUsers int64  `json:"active_users"`
}
