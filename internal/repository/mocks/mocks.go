// Package mocks 提供 repository 接口的 testify mock 实现，供各层单元测试使用。
package mocks

import (
	"context"
	"io"
	"time"

	"multiroom-chat/internal/domain"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository 是 repository.UserRepository 的 mock 实现
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) Save(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockRoomRepository 是 repository.RoomRepository 的 mock 实现
type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	args := m.Called(ctx, id)
	room, _ := args.Get(0).(*domain.Room)
	return room, args.Error(1)
}

func (m *MockRoomRepository) FindByName(ctx context.Context, name string) (*domain.Room, error) {
	args := m.Called(ctx, name)
	room, _ := args.Get(0).(*domain.Room)
	return room, args.Error(1)
}

func (m *MockRoomRepository) FindAll(ctx context.Context) ([]domain.Room, error) {
	args := m.Called(ctx)
	rooms, _ := args.Get(0).([]domain.Room)
	return rooms, args.Error(1)
}

func (m *MockRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

// MockMessageRepository 是 repository.MessageRepository 的 mock 实现
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Save(ctx context.Context, message *domain.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) FindByRoom(ctx context.Context, roomID uint) ([]domain.RoomMessage, error) {
	args := m.Called(ctx, roomID)
	msgs, _ := args.Get(0).([]domain.RoomMessage)
	return msgs, args.Error(1)
}

// MockMembershipRepository 是 repository.MembershipRepository 的 mock 实现
type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) Upsert(ctx context.Context, userID, roomID uint, enteredAt time.Time) error {
	args := m.Called(ctx, userID, roomID, enteredAt)
	return args.Error(0)
}

func (m *MockMembershipRepository) Delete(ctx context.Context, userID, roomID uint) error {
	args := m.Called(ctx, userID, roomID)
	return args.Error(0)
}

func (m *MockMembershipRepository) CountDistinctUsers(ctx context.Context, roomID uint) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMembershipRepository) FindAll(ctx context.Context) ([]domain.ActiveMembership, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]domain.ActiveMembership)
	return rows, args.Error(1)
}

// MockSessionStateRepository 是 repository.SessionStateRepository 的 mock 实现
type MockSessionStateRepository struct {
	mock.Mock
}

func (m *MockSessionStateRepository) SetCurrentRoom(ctx context.Context, userID, roomID uint) error {
	args := m.Called(ctx, userID, roomID)
	return args.Error(0)
}

func (m *MockSessionStateRepository) GetCurrentRoom(ctx context.Context, userID uint) (uint, bool, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func (m *MockSessionStateRepository) ClearCurrentRoom(ctx context.Context, userID uint) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockBlobStore 是 repository.BlobStore 的 mock 实现
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	args := m.Called(ctx, filename, r)
	return args.String(0), args.Error(1)
}
