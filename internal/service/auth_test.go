package service

import (
	"context"
	"errors"
	"testing"

	"multiroom-chat/internal/domain"
	"multiroom-chat/internal/repository"
	"multiroom-chat/internal/repository/mocks"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret-key-for-unit-tests"

func newTestAuthService(t *testing.T, userRepo repository.UserRepository) *AuthService {
	t.Helper()
	svc, err := NewAuthService(userRepo, testJWTSecret, 1)
	require.NoError(t, err)
	return svc
}

func TestRegisterSuccess(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.MockUserRepository)
	svc := newTestAuthService(t, mockRepo)

	mockRepo.On("Save", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		// 密码必须已经被哈希，不能明文入库
		return u.Username == "alice" && u.Password != "password123" &&
			bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("password123")) == nil
	})).Return(nil).Once()

	// Act
	user, err := svc.Register(context.Background(), "alice", "password123")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.Password, "password hash must not be returned")
	mockRepo.AssertExpectations(t)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	mockRepo := new(mocks.MockUserRepository)
	svc := newTestAuthService(t, mockRepo)

	mockRepo.On("Save", mock.Anything, mock.Anything).Return(repository.ErrDuplicateEntry).Once()

	user, err := svc.Register(context.Background(), "alice", "password123")

	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrRegistrationFailed)
}

func TestRegisterMissingFields(t *testing.T) {
	mockRepo := new(mocks.MockUserRepository)
	svc := newTestAuthService(t, mockRepo)

	_, err := svc.Register(context.Background(), "", "password123")
	assert.ErrorIs(t, err, ErrIncompleteRequest)

	_, err = svc.Register(context.Background(), "alice", "")
	assert.ErrorIs(t, err, ErrIncompleteRequest)

	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestLoginSuccessIssuesTokenWithIdentityClaims(t *testing.T) {
	mockRepo := new(mocks.MockUserRepository)
	svc := newTestAuthService(t, mockRepo)

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	require.NoError(t, err)
	mockRepo.On("FindByUsername", mock.Anything, "alice").
		Return(&domain.User{ID: 42, Username: "alice", Password: string(hashed)}, nil).Once()

	tokenStr, err := svc.Login(context.Background(), "alice", "password123")

	require.NoError(t, err)
	require.NotEmpty(t, tokenStr)

	// token 必须携带 user_id 和 username，广播路径依赖 username claim
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(42), claims["user_id"])
	assert.Equal(t, "alice", claims["username"])
}

func TestLoginWrongPassword(t *testing.T) {
	mockRepo := new(mocks.MockUserRepository)
	svc := newTestAuthService(t, mockRepo)

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	require.NoError(t, err)
	mockRepo.On("FindByUsername", mock.Anything, "alice").
		Return(&domain.User{ID: 42, Username: "alice", Password: string(hashed)}, nil).Once()

	tokenStr, err := svc.Login(context.Background(), "alice", "wrong-password")

	assert.Empty(t, tokenStr)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestLoginUnknownUser(t *testing.T) {
	mockRepo := new(mocks.MockUserRepository)
	svc := newTestAuthService(t, mockRepo)

	mockRepo.On("FindByUsername", mock.Anything, "ghost").Return(nil, repository.ErrUserNotFound).Once()

	tokenStr, err := svc.Login(context.Background(), "ghost", "password123")

	assert.Empty(t, tokenStr)
	// 用户不存在和密码错误对客户端不可区分
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestLoginRepositoryFailure(t *testing.T) {
	mockRepo := new(mocks.MockUserRepository)
	svc := newTestAuthService(t, mockRepo)

	mockRepo.On("FindByUsername", mock.Anything, "alice").Return(nil, errors.New("db down")).Once()

	_, err := svc.Login(context.Background(), "alice", "password123")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}
