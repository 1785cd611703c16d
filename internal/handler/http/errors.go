package httphandler

import (
	"errors"
	"net/http"

	"multiroom-chat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HandleServiceError 将 service 层的业务错误映射为 HTTP 状态码。
// 未识别的错误一律按 500 处理，不向客户端泄露内部细节。
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrIncompleteRequest):
		ErrorResponse(c, http.StatusBadRequest, "Incomplete request: missing required fields")
	case errors.Is(err, service.ErrInvalidUpload):
		ErrorResponse(c, http.StatusBadRequest, "File type not allowed")
	case errors.Is(err, service.ErrAuthenticationFailed):
		ErrorResponse(c, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, service.ErrUserNotFound):
		ErrorResponse(c, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrRoomNotFound):
		ErrorResponse(c, http.StatusNotFound, "Room not found")
	case errors.Is(err, service.ErrRegistrationFailed):
		ErrorResponse(c, http.StatusConflict, "Username already exists")
	case errors.Is(err, service.ErrRoomExists):
		ErrorResponse(c, http.StatusConflict, "Room name already exists")
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled service error")
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}

// currentUser 从 Gin 上下文读取认证中间件写入的身份。
// 在挂了 Auth 中间件的路由上缺失属于编程错误。
func currentUser(c *gin.Context) (uint, string, bool) {
	idVal, ok := c.Get("user_id")
	if !ok {
		return 0, "", false
	}
	userID, ok := idVal.(uint)
	if !ok || userID == 0 {
		return 0, "", false
	}
	username, _ := c.Get("username")
	name, _ := username.(string)
	return userID, name, true
}
