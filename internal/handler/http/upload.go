package httphandler

import (
	"net/http"

	"multiroom-chat/internal/hub"
	"multiroom-chat/internal/repository"
	"multiroom-chat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxUploadSize 是上传文件的大小上限 (16MB)。
const maxUploadSize = 16 << 20

// UploadHandler 处理图片上传请求
type UploadHandler struct {
	uploadService *service.UploadService
	sessionRepo   repository.SessionStateRepository
	hub           *hub.Hub
}

// NewUploadHandler 创建 UploadHandler 实例
func NewUploadHandler(uploadService *service.UploadService, sessionRepo repository.SessionStateRepository, h *hub.Hub) *UploadHandler {
	if uploadService == nil {
		panic("UploadService cannot be nil for UploadHandler")
	}
	if sessionRepo == nil {
		panic("SessionStateRepository cannot be nil for UploadHandler")
	}
	if h == nil {
		panic("Hub cannot be nil for UploadHandler")
	}
	return &UploadHandler{uploadService: uploadService, sessionRepo: sessionRepo, hub: h}
}

// Upload 处理图片上传 (POST /api/upload)。
// 上传者必须当前绑定着一个房间；文件校验和消息持久化成功后，
// 以与文本消息相同的 new_message 事件广播给房间。
func (h *UploadHandler) Upload(c *gin.Context) {
	userID, username, ok := currentUser(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	roomID, found, err := h.sessionRepo.GetCurrentRoom(c.Request.Context(), userID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to read session context for upload")
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !found {
		ErrorResponse(c, http.StatusBadRequest, "Not currently in a room")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		logCtx.WithError(err).Warn("Upload request missing file field")
		ErrorResponse(c, http.StatusBadRequest, "A 'file' form field is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		logCtx.WithError(err).Error("Failed to open uploaded file")
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer file.Close()

	message, err := h.uploadService.Upload(c.Request.Context(), userID, roomID, fileHeader.Filename, file)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	eventBytes, err := hub.NewChatMessageEvent(username, message)
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal new_message event for upload")
	} else {
		h.hub.Publish(roomID, eventBytes)
	}

	SuccessResponse(c, http.StatusCreated, gin.H{"url": message.Content})
}
