package httphandler

import (
	"net/http"

	"multiroom-chat/internal/dto"
	"multiroom-chat/internal/hub"
	"multiroom-chat/internal/repository"
	"multiroom-chat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	authService *service.AuthService
	presence    *service.PresenceService
	sessionRepo repository.SessionStateRepository
	hub         *hub.Hub
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService, presence *service.PresenceService, sessionRepo repository.SessionStateRepository, h *hub.Hub) *AuthHandler {
	if authService == nil {
		panic("AuthService cannot be nil for AuthHandler")
	}
	if presence == nil {
		panic("PresenceService cannot be nil for AuthHandler")
	}
	if sessionRepo == nil {
		panic("SessionStateRepository cannot be nil for AuthHandler")
	}
	if h == nil {
		panic("Hub cannot be nil for AuthHandler")
	}
	return &AuthHandler{authService: authService, presence: presence, sessionRepo: sessionRepo, hub: h}
}

// Register 处理用户注册请求 (POST /api/auth/register)
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Register request binding failed")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: username (3-32 chars) and password (6-72 chars) are required")
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, gin.H{
		"message":  "User registered successfully",
		"user_id":  user.ID,
		"username": user.Username,
	})
}

// Login 处理用户登录请求 (POST /api/auth/login)
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Login request binding failed")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: username and password are required")
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{"token": token})
}

// Logout 处理用户登出请求 (POST /api/auth/logout)。
// 登出不等连接断开: 立即清除活跃成员关系和会话的房间绑定，
// 并向原房间广播离开事件，在线人数当场回落。
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, username, ok := currentUser(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	roomID, found, err := h.sessionRepo.GetCurrentRoom(c.Request.Context(), userID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to read session context during logout")
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if found {
		if err := h.presence.MarkInactive(c.Request.Context(), userID, roomID); err != nil {
			// 留给在线状态对账任务兜底
			logCtx.WithError(err).WithField("room_id", roomID).Error("Failed to mark user inactive during logout")
		}
		if err := h.sessionRepo.ClearCurrentRoom(c.Request.Context(), userID); err != nil {
			logCtx.WithError(err).Warn("Failed to clear session context during logout")
		}

		eventBytes, err := hub.NewUserLeftEvent(username, roomID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to marshal user_left_room event for logout")
		} else {
			h.hub.Publish(roomID, eventBytes)
		}
	}

	logCtx.Info("User logged out")
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}
