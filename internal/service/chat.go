package service

import (
	"context"
	"time"

	"multiroom-chat/internal/domain"
	"multiroom-chat/internal/repository"

	"github.com/sirupsen/logrus"
)

// ChatService 负责消息的持久化与历史查询。
// 持久化是同步的：调用方必须在收到成功返回之后才能广播，
// 保证被广播的消息一定已经落盘。
type ChatService struct {
	messageRepo repository.MessageRepository
}

// NewChatService 创建 ChatService 实例。
func NewChatService(messageRepo repository.MessageRepository) *ChatService {
	if messageRepo == nil {
		panic("MessageRepository cannot be nil for ChatService")
	}
	return &ChatService{messageRepo: messageRepo}
}

// PostMessage 持久化一条消息并返回持久化后的记录。
// kind 只能是 domain.MessageKindText 或 domain.MessageKindImage。
func (s *ChatService) PostMessage(ctx context.Context, roomID, userID uint, content, kind string) (*domain.Message, error) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": userID,
		"kind":    kind,
	})

	if roomID == 0 || userID == 0 || content == "" {
		return nil, ErrIncompleteRequest
	}
	if kind != domain.MessageKindText && kind != domain.MessageKindImage {
		kind = domain.MessageKindText
	}

	message := &domain.Message{
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		Kind:      kind,
		Timestamp: time.Now(),
	}

	if err := s.messageRepo.Save(ctx, message); err != nil {
		logCtx.WithError(err).Error("Failed to persist message")
		return nil, ErrInternalServer
	}

	logCtx.WithField("message_id", message.ID).Debug("Message persisted")
	return message, nil
}

// History 返回房间的消息历史，按 Timestamp 升序排列。
func (s *ChatService) History(ctx context.Context, roomID uint) ([]domain.RoomMessage, error) {
	msgs, err := s.messageRepo.FindByRoom(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to load room history")
		return nil, ErrInternalServer
	}
	return msgs, nil
}
