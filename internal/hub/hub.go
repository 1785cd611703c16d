// Package hub 实现了聊天核心：连接生命周期、房间会话状态机、
// 在线状态维护与房间内事件广播。
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"multiroom-chat/internal/dto"
	"multiroom-chat/internal/repository"
	"multiroom-chat/internal/service"

	"github.com/sirupsen/logrus"
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string  // "register", "unregister", "event", "publish"
	Client  *Client // register/unregister/event 的来源连接
	RoomID  uint    // 仅用于 publish (带外广播)
	RawData []byte  // event 的原始 WebSocket 消息，或 publish 的广播字节
}

// Hub 维护活跃连接集合并串行处理所有状态转换。
// Run 在单个 goroutine 中逐条消费 messageChan：每个逻辑事件
// (连接、断开、加入、离开、发消息) 处理完才取下一条，因此
// 订阅关系和成员关系的变更天然是一个整体步骤，不会交错。
type Hub struct {
	// 内部通道，处理所有来自 Client 和带外调用方的事件
	messageChan chan HubMessage

	// 已注册连接集合
	clients map[*Client]bool

	// 订阅关系，按 RoomID 组织: map[roomID]map[*Client]bool
	// 与会话状态机的 InRoom 转换保持严格同步。
	// 后台对账任务会从其他 goroutine 读取，因此仍需要锁。
	rooms   map[uint]map[*Client]bool
	roomsMu sync.RWMutex

	// 注入的依赖
	roomService *service.RoomService
	presence    *service.PresenceService
	chat        *service.ChatService
	sessionRepo repository.SessionStateRepository

	// 停止信号。messageChan 永远不关闭：生产者 (ReadPump 的注销、
	// HTTP 路径的 Publish) 在 Stop 之后可能仍然存活，向已关闭通道
	// 发送会 panic。
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(roomService *service.RoomService, presence *service.PresenceService, chat *service.ChatService, sessionRepo repository.SessionStateRepository) *Hub {
	if roomService == nil {
		panic("RoomService cannot be nil for Hub")
	}
	if presence == nil {
		panic("PresenceService cannot be nil for Hub")
	}
	if chat == nil {
		panic("ChatService cannot be nil for Hub")
	}
	if sessionRepo == nil {
		panic("SessionStateRepository cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		clients:     make(map[*Client]bool),
		rooms:       make(map[uint]map[*Client]bool),
		roomService: roomService,
		presence:    presence,
		chat:        chat,
		sessionRepo: sessionRepo,
		done:        make(chan struct{}),
	}
}

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行，Stop 发出信号后退出。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case msg := <-h.messageChan:
			switch msg.Type {
			case "register":
				h.handleRegister(msg.Client)
			case "unregister":
				h.handleUnregister(msg.Client)
			case "event":
				h.handleEvent(msg.Client, msg.RawData)
			case "publish":
				h.broadcastToRoom(msg.RoomID, msg.RawData, nil)
			default:
				log.Warnf("Hub: Received unknown message type: %s", msg.Type)
			}
		case <-h.done:
			log.Info("Hub is shutting down...")
			return
		}
	}
}

// Stop 通知 Run 退出。重复调用是安全的。
// Stop 之后入队的消息不再被处理，但入队本身始终是安全的。
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 true 如果消息成功入队，false 如果队列已满。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}

// Publish 将一段已编码的事件字节广播到房间的所有订阅者。
// 供 HTTP 触发的加入和图片上传等带外路径使用；投递是尽力而为的。
func (h *Hub) Publish(roomID uint, payload []byte) bool {
	return h.QueueMessage(HubMessage{Type: "publish", RoomID: roomID, RawData: payload})
}

// IsMemberLive 报告某用户当前是否有存活连接订阅着某房间。
// 供在线状态对账任务从其他 goroutine 调用。
func (h *Hub) IsMemberLive(userID, roomID uint) bool {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	for client := range h.rooms[roomID] {
		if client.session.UserID() == userID {
			return true
		}
	}
	return false
}

// --- 事件处理 (只在 Run 的 goroutine 中执行) ---

// handleRegister 处理连接注册。
// 如果会话上下文中记录了之前绑定的房间 (例如页面刷新后重连)，
// 自动重放 Join 转换；这条路径的加入广播包含连接自身。
func (h *Hub) handleRegister(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	h.clients[client] = true

	logCtx := logrus.WithFields(logrus.Fields{
		"user_id": client.session.UserID(),
		"action":  "registerClient",
	})
	logCtx.Info("Client registered to Hub")

	if !client.session.Bound() {
		// 未认证连接可以存在，但停留在 Unbound，无法执行聊天操作
		logCtx.Debug("Client has no identity, staying unbound")
		return
	}

	ctx := context.Background()
	roomID, found, err := h.sessionRepo.GetCurrentRoom(ctx, client.session.UserID())
	if err != nil {
		logCtx.WithError(err).Warn("Failed to read session context, skipping room resume")
		return
	}
	if !found {
		return
	}

	room, err := h.roomService.FindRoomByID(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).WithField("room_id", roomID).Warn("Bound room no longer resolvable, clearing session context")
		if clearErr := h.sessionRepo.ClearCurrentRoom(ctx, client.session.UserID()); clearErr != nil {
			logCtx.WithError(clearErr).Warn("Failed to clear stale session context")
		}
		return
	}

	// 重连路径的加入广播包含自己 (与事件触发的加入不同)
	h.joinRoom(client, room.ID, true)
}

// handleUnregister 处理连接注销。
// 任何原因的断开 (显式关闭、超时、网络故障) 都会走到这里；
// 若连接仍在房间内，先执行与显式 Leave 等效的清理。
// LeaveRoom 的幂等性保证清理对每次连接丢失恰好执行一次。
func (h *Hub) handleUnregister(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	if _, ok := h.clients[client]; !ok {
		return
	}

	h.leaveRoom(client, false)

	delete(h.clients, client)
	close(client.send)

	logrus.WithFields(logrus.Fields{
		"user_id": client.session.UserID(),
		"action":  "unregisterClient",
	}).Info("Client unregistered from Hub")
}

// handleEvent 解析并分发一条来自客户端的事件。
// 协议层错误只影响当前请求：记录日志、丢弃请求，连接保持可用。
func (h *Hub) handleEvent(client *Client, raw []byte) {
	if client == nil {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"user_id": client.session.UserID(),
		"room_id": client.session.CurrentRoom(),
	})

	var envelope dto.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Event == "" {
		logCtx.Warn("Dropping malformed client event")
		return
	}
	logCtx = logCtx.WithField("event", envelope.Event)

	if !client.session.Bound() {
		logCtx.Warn("Rejecting event from unauthenticated connection")
		h.sendError(client, "not authenticated")
		return
	}

	switch envelope.Event {
	case EventJoinRoom:
		h.onJoinRoom(client, envelope.Data, logCtx)
	case EventLeaveRoom:
		h.onLeaveRoom(client, envelope.Data, logCtx)
	case EventSendMessage:
		h.onSendMessage(client, envelope.Data, logCtx)
	case EventGetActiveUsers:
		h.onGetActiveUsers(client, envelope.Data, logCtx)
	default:
		logCtx.Warn("Received unknown client event")
	}
}

// onJoinRoom 处理 join_room_event。
// 房间必须存在；事件触发的加入广播不包含自己。
func (h *Hub) onJoinRoom(client *Client, data []byte, logCtx *logrus.Entry) {
	var payload dto.JoinRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == 0 {
		logCtx.Warn("Dropping join_room_event with incomplete payload")
		return
	}

	room, err := h.roomService.FindRoomByID(context.Background(), payload.RoomID)
	if err != nil {
		logCtx.WithError(err).WithField("target_room", payload.RoomID).Warn("Join rejected: room not resolvable")
		h.sendError(client, "room not found")
		return
	}

	h.joinRoom(client, room.ID, false)
}

// onLeaveRoom 处理 leave_room_event。离开广播包含自己。
func (h *Hub) onLeaveRoom(client *Client, data []byte, logCtx *logrus.Entry) {
	var payload dto.LeaveRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == 0 {
		logCtx.Warn("Dropping leave_room_event with incomplete payload")
		return
	}
	if client.session.CurrentRoom() != payload.RoomID {
		logCtx.WithField("target_room", payload.RoomID).Warn("Dropping leave_room_event for a room the connection is not in")
		return
	}
	h.leaveRoom(client, true)
}

// onSendMessage 处理 send_message。
// 只在 InRoom 状态下有定义；先同步持久化，成功后才广播 (含发送者)。
// 持久化失败时不广播，客户端收到错误回复，消息等于没有发生。
func (h *Hub) onSendMessage(client *Client, data []byte, logCtx *logrus.Entry) {
	var payload dto.SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == 0 || payload.Message == "" {
		logCtx.Warn("Dropping send_message with incomplete payload")
		return
	}
	if client.session.CurrentRoom() != payload.RoomID {
		logCtx.WithField("target_room", payload.RoomID).Warn("Rejecting send_message outside current room")
		h.sendError(client, "not in room")
		return
	}

	message, err := h.chat.PostMessage(context.Background(), payload.RoomID, client.session.UserID(), payload.Message, "text")
	if err != nil {
		logCtx.WithError(err).Error("Message rejected: persistence failed")
		h.sendError(client, "message could not be delivered")
		return
	}

	eventBytes, err := NewChatMessageEvent(client.session.Username(), message)
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal new_message event")
		return
	}
	// 发送者通过同一条广播路径看到自己的消息
	h.broadcastToRoom(payload.RoomID, eventBytes, nil)
}

// onGetActiveUsers 处理 get_active_users，只回复请求者。
func (h *Hub) onGetActiveUsers(client *Client, data []byte, logCtx *logrus.Entry) {
	var payload dto.ActiveUsersPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == 0 {
		logCtx.Warn("Dropping get_active_users with incomplete payload")
		return
	}

	count, err := h.presence.ActiveCount(context.Background(), payload.RoomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to query active count")
		h.sendError(client, "failed to query active users")
		return
	}

	eventBytes, err := newActiveUsersEvent(payload.RoomID, count)
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal active_users_update event")
		return
	}
	h.sendToClient(client, eventBytes)
}

// --- 状态转换 ---

// joinRoom 执行 Join 转换：标记活跃、切换会话状态、建立订阅、
// 刷新会话上下文、广播加入事件。订阅建立与 markActive 在同一个
// 串行步骤内完成，保证订阅关系始终镜像逻辑成员关系。
// 已在其他房间时先完整执行隐式 Leave。
// includeSelf 控制加入广播是否包含连接自身 (重连路径包含，
// 事件路径不包含)。
func (h *Hub) joinRoom(client *Client, roomID uint, includeSelf bool) {
	logCtx := logrus.WithFields(logrus.Fields{
		"user_id": client.session.UserID(),
		"room_id": roomID,
		"action":  "joinRoom",
	})

	ctx := context.Background()
	rejoin := client.session.CurrentRoom() == roomID

	if client.session.InRoom() && !rejoin {
		// 隐式 Leave 必须完整执行：成员删除 + 离开事件广播
		h.leaveRoom(client, true)
	}

	// 先持久化成员关系；失败的加入不留下任何状态变化
	if err := h.presence.MarkActive(ctx, client.session.UserID(), roomID); err != nil {
		logCtx.WithError(err).Error("Join rejected: failed to mark membership active")
		h.sendError(client, "failed to join room")
		return
	}

	if !rejoin {
		if !client.session.EnterRoom(roomID) {
			// 不应发生：上面已确保会话处于 Idle
			logCtx.Error("Session refused EnterRoom transition")
			return
		}
		h.roomsMu.Lock()
		if _, ok := h.rooms[roomID]; !ok {
			h.rooms[roomID] = make(map[*Client]bool)
		}
		h.rooms[roomID][client] = true
		h.roomsMu.Unlock()
	}

	if err := h.sessionRepo.SetCurrentRoom(ctx, client.session.UserID(), roomID); err != nil {
		logCtx.WithError(err).Warn("Failed to record current room in session context")
	}

	eventBytes, err := NewUserJoinedEvent(client.session.Username(), roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal user_joined_room event")
		return
	}
	if includeSelf {
		h.broadcastToRoom(roomID, eventBytes, nil)
	} else {
		h.broadcastToRoom(roomID, eventBytes, client)
	}
	logCtx.Info("Client joined room")
}

// leaveRoom 执行 Leave 转换：解除订阅、删除活跃标记、清除会话
// 上下文、向剩余成员广播离开事件。notifySelf 为 true 时 (显式
// leave) 同一载荷也发给离开者本人。
// 以 LeaveRoom 的幂等性兜底，重复调用是 no-op。
func (h *Hub) leaveRoom(client *Client, notifySelf bool) {
	roomID, ok := client.session.LeaveRoom()
	if !ok {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"user_id": client.session.UserID(),
		"room_id": roomID,
		"action":  "leaveRoom",
	})

	h.roomsMu.Lock()
	if roomClients, exists := h.rooms[roomID]; exists {
		delete(roomClients, client)
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.roomsMu.Unlock()

	ctx := context.Background()
	if err := h.presence.MarkInactive(ctx, client.session.UserID(), roomID); err != nil {
		// 留给在线状态对账任务兜底，不能因此卡住清理
		logCtx.WithError(err).Error("Failed to mark membership inactive on leave")
	}
	if err := h.sessionRepo.ClearCurrentRoom(ctx, client.session.UserID()); err != nil {
		logCtx.WithError(err).Warn("Failed to clear session context on leave")
	}

	eventBytes, err := NewUserLeftEvent(client.session.Username(), roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal user_left_room event")
		return
	}
	h.broadcastToRoom(roomID, eventBytes, nil)
	if notifySelf {
		h.sendToClient(client, eventBytes)
	}
	logCtx.Info("Client left room")
}

// --- 投递 ---

// broadcastToRoom 将消息发送给房间的所有订阅者，可排除一个连接。
// 事件不持久化，对每个订阅者至多投递一次；慢客户端的缓冲满时
// 丢弃该次投递，由其 WritePump 或清理逻辑处理后续。
func (h *Hub) broadcastToRoom(roomID uint, message []byte, exclude *Client) {
	h.roomsMu.RLock()
	roomClients, ok := h.rooms[roomID]
	clientsToSend := make([]*Client, 0, len(roomClients))
	if ok {
		for client := range roomClients {
			if client != exclude {
				clientsToSend = append(clientsToSend, client)
			}
		}
	}
	h.roomsMu.RUnlock()

	if len(clientsToSend) == 0 {
		return
	}

	for _, client := range clientsToSend {
		select {
		case client.send <- message:
		default:
			logrus.WithFields(logrus.Fields{
				"room_id":          roomID,
				"receiver_user_id": client.session.UserID(),
			}).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

// sendToClient 向单个连接投递消息 (非阻塞)。
func (h *Hub) sendToClient(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		logrus.WithField("user_id", client.session.UserID()).Warn("Client send channel full, message dropped")
	}
}

// sendError 向单个连接投递 error 事件。
func (h *Hub) sendError(client *Client, message string) {
	eventBytes, err := newErrorEvent(message)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal error event")
		return
	}
	h.sendToClient(client, eventBytes)
}
