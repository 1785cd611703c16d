package service

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"multiroom-chat/internal/domain"
	"multiroom-chat/internal/repository"

	"github.com/sirupsen/logrus"
)

// allowedExtensions 是图片上传的扩展名白名单。
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// UploadService 负责图片上传：校验扩展名、写入 blob 存储、
// 持久化一条 image 类型的消息 (内容是引用 URL，不是原始字节)。
type UploadService struct {
	blobStore repository.BlobStore
	chat      *ChatService
}

// NewUploadService 创建 UploadService 实例。
func NewUploadService(blobStore repository.BlobStore, chat *ChatService) *UploadService {
	if blobStore == nil {
		panic("BlobStore cannot be nil for UploadService")
	}
	if chat == nil {
		panic("ChatService cannot be nil for UploadService")
	}
	return &UploadService{blobStore: blobStore, chat: chat}
}

// Upload 校验并存储一个上传文件，随后持久化对应的 image 消息。
// 扩展名不在白名单内时返回 ErrInvalidUpload，且不产生任何副作用：
// 没有 blob 写入，没有消息行。
func (s *UploadService) Upload(ctx context.Context, userID, roomID uint, filename string, r io.Reader) (*domain.Message, error) {
	logCtx := logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"room_id":  roomID,
		"filename": filename,
	})

	if filename == "" || r == nil {
		return nil, ErrInvalidUpload
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		logCtx.Warn("Upload rejected: file extension not allowed")
		return nil, ErrInvalidUpload
	}

	url, err := s.blobStore.Save(ctx, filename, r)
	if err != nil {
		logCtx.WithError(err).Error("Failed to store uploaded file")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("url", url)

	// 先落盘再由调用方广播，与文本消息同一条路径
	message, err := s.chat.PostMessage(ctx, roomID, userID, url, domain.MessageKindImage)
	if err != nil {
		logCtx.WithError(err).Error("Failed to persist image message after upload")
		return nil, err
	}

	logCtx.Info("Image uploaded and message persisted")
	return message, nil
}
