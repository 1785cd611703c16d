package hub

// SessionState 表示一条连接的房间会话状态。
type SessionState int

const (
	// StateUnbound 连接存在但尚未解析出身份，聊天操作一律被拒绝
	StateUnbound SessionState = iota
	// StateIdle 身份已绑定，但不在任何房间内
	StateIdle
	// StateInRoom 身份已绑定，且正处于某个房间内
	StateInRoom
)

// RoomSession 是单条连接的会话记录：身份 + 至多一个当前房间。
// 不变量：任意时刻一条连接属于零个或一个房间；切换房间前必须
// 先完整执行对旧房间的隐式 Leave。
// 只有 Hub 的事件循环会修改它，因此不需要加锁；
// UserID 在注册前绑定且之后不变，可被其他 goroutine 读取。
type RoomSession struct {
	userID   uint
	username string
	state    SessionState
	roomID   uint
}

// NewSession 创建一个处于 Unbound 状态的会话。
func NewSession() *RoomSession {
	return &RoomSession{state: StateUnbound}
}

// Bind 绑定身份，完成 Unbound → Idle 转换。重复绑定是 no-op。
func (s *RoomSession) Bind(userID uint, username string) {
	if s.state != StateUnbound {
		return
	}
	s.userID = userID
	s.username = username
	s.state = StateIdle
}

// Bound 报告会话是否已绑定身份。
func (s *RoomSession) Bound() bool { return s.state != StateUnbound }

// UserID 返回绑定的用户 ID，未绑定时为 0。
func (s *RoomSession) UserID() uint { return s.userID }

// Username 返回绑定的用户名。
func (s *RoomSession) Username() string { return s.username }

// State 返回当前会话状态。
func (s *RoomSession) State() SessionState { return s.state }

// InRoom 报告连接当前是否处于某个房间内。
func (s *RoomSession) InRoom() bool { return s.state == StateInRoom }

// CurrentRoom 返回当前房间 ID，不在房间内时为 0。
func (s *RoomSession) CurrentRoom() uint {
	if s.state != StateInRoom {
		return 0
	}
	return s.roomID
}

// EnterRoom 完成 Idle → InRoom 转换。
// 前置条件：已绑定身份且不在任何房间内；违反时返回 false 并保持原状态。
func (s *RoomSession) EnterRoom(roomID uint) bool {
	if s.state != StateIdle || roomID == 0 {
		return false
	}
	s.roomID = roomID
	s.state = StateInRoom
	return true
}

// LeaveRoom 完成 InRoom → Idle 转换，返回离开的房间 ID。
// 幂等：不在房间内时返回 (0, false)，重复离开不是错误。
// 这个布尔值同时保证了断连清理恰好执行一次。
func (s *RoomSession) LeaveRoom() (uint, bool) {
	if s.state != StateInRoom {
		return 0, false
	}
	roomID := s.roomID
	s.roomID = 0
	s.state = StateIdle
	return roomID, true
}
