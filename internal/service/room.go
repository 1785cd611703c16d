package service

import (
	"context"
	"errors"
	"strings"

	"multiroom-chat/internal/domain"
	"multiroom-chat/internal/repository"

	"github.com/sirupsen/logrus"
)

// RoomService 负责房间管理相关的业务逻辑。
type RoomService struct {
	roomRepo repository.RoomRepository
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(roomRepo repository.RoomRepository) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	return &RoomService{roomRepo: roomRepo}
}

// CreateRoom 按需创建一个新房间，名称必须唯一。
func (s *RoomService) CreateRoom(ctx context.Context, name string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	logCtx := logrus.WithField("room_name", name)

	if name == "" {
		return nil, ErrIncompleteRequest
	}

	room := &domain.Room{Name: name}
	err := s.roomRepo.Save(ctx, room)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.Warn("Failed to create room: name already exists")
			return nil, ErrRoomExists
		}
		logCtx.WithError(err).Error("Failed to save new room to database")
		return nil, ErrInternalServer
	}

	logCtx.WithField("room_id", room.ID).Info("Room created successfully")
	return room, nil
}

// ListRooms 返回全部房间，按名称排序。
func (s *RoomService) ListRooms(ctx context.Context) ([]domain.Room, error) {
	rooms, err := s.roomRepo.FindAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list rooms")
		return nil, ErrInternalServer
	}
	return rooms, nil
}

// FindRoomByID 根据 ID 查找房间，供 Join 校验房间存在性使用。
func (s *RoomService) FindRoomByID(ctx context.Context, roomID uint) (*domain.Room, error) {
	logCtx := logrus.WithField("room_id", roomID)
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("FindRoomByID: Room not found")
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("FindRoomByID: Repository error")
		return nil, ErrInternalServer
	}
	if room == nil { // 防御
		logCtx.Warn("FindRoomByID: Repository returned nil room without error")
		return nil, ErrRoomNotFound
	}
	return room, nil
}
