package httphandler

import (
	"net/http"
	"strconv"

	"multiroom-chat/internal/dto"
	"multiroom-chat/internal/hub"
	"multiroom-chat/internal/repository"
	"multiroom-chat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// historyTimeFormat 与 WebSocket 广播载荷的时间戳格式一致。
const historyTimeFormat = "2006-01-02 15:04:05"

// RoomHandler 处理房间相关的 HTTP 请求
type RoomHandler struct {
	roomService *service.RoomService
	presence    *service.PresenceService
	chatService *service.ChatService
	sessionRepo repository.SessionStateRepository
	hub         *hub.Hub
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService, presence *service.PresenceService, chatService *service.ChatService, sessionRepo repository.SessionStateRepository, h *hub.Hub) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	if presence == nil {
		panic("PresenceService cannot be nil for RoomHandler")
	}
	if chatService == nil {
		panic("ChatService cannot be nil for RoomHandler")
	}
	if sessionRepo == nil {
		panic("SessionStateRepository cannot be nil for RoomHandler")
	}
	if h == nil {
		panic("Hub cannot be nil for RoomHandler")
	}
	return &RoomHandler{
		roomService: roomService,
		presence:    presence,
		chatService: chatService,
		sessionRepo: sessionRepo,
		hub:         h,
	}
}

// CreateRoom 处理创建房间请求 (POST /api/rooms)
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("CreateRoom request binding failed")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: room name is required")
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), req.Name)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, gin.H{"id": room.ID, "name": room.Name})
}

// ListRooms 处理房间列表请求 (GET /api/rooms)，附带各房间在线人数
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	resp := make([]dto.RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		count, err := h.presence.ActiveCount(c.Request.Context(), room.ID)
		if err != nil {
			// 单个房间的计数失败不应该让整个列表失败
			logrus.WithError(err).WithField("room_id", room.ID).Warn("Failed to count active users for room listing")
			count = 0
		}
		resp = append(resp, dto.RoomResponse{ID: room.ID, Name: room.Name, ActiveUsers: count})
	}

	SuccessResponse(c, http.StatusOK, gin.H{"rooms": resp})
}

// JoinRoom 处理 HTTP 触发的加入请求 (POST /api/rooms/:id/join)。
// 这是页面跳转进入房间的路径：标记活跃、记录会话上下文，并向
// 房间内已有的连接广播加入事件 (发起者此时还没有订阅，随后
// WebSocket 重连时会自动重放 Join)。
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID, username, ok := currentUser(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	roomID, err := parseRoomID(c)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid room ID")
		return
	}

	room, err := h.roomService.FindRoomByID(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	if err := h.presence.MarkActive(c.Request.Context(), userID, room.ID); err != nil {
		HandleServiceError(c, err)
		return
	}
	if err := h.sessionRepo.SetCurrentRoom(c.Request.Context(), userID, room.ID); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to record current room in session context")
	}

	eventBytes, err := hub.NewUserJoinedEvent(username, room.ID)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal user_joined_room event for HTTP join")
	} else {
		h.hub.Publish(room.ID, eventBytes)
	}

	SuccessResponse(c, http.StatusOK, gin.H{"room_id": room.ID, "name": room.Name})
}

// History 处理房间历史消息请求 (GET /api/rooms/:id/messages)
func (h *RoomHandler) History(c *gin.Context) {
	roomID, err := parseRoomID(c)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid room ID")
		return
	}

	if _, err := h.roomService.FindRoomByID(c.Request.Context(), roomID); err != nil {
		HandleServiceError(c, err)
		return
	}

	msgs, err := h.chatService.History(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	items := make([]dto.ChatMessagePayload, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, dto.ChatMessagePayload{
			Username:  m.Username,
			Message:   m.Content,
			Timestamp: m.Timestamp.Format(historyTimeFormat),
			RoomID:    roomID,
			Kind:      m.Kind,
		})
	}

	SuccessResponse(c, http.StatusOK, gin.H{"messages": items})
}

// parseRoomID 解析路径参数中的房间 ID
func parseRoomID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, strconv.ErrSyntax
	}
	return uint(id), nil
}
