package hub

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"multiroom-chat/internal/domain"
	"multiroom-chat/internal/dto"
	"multiroom-chat/internal/repository"
	"multiroom-chat/internal/repository/mocks"
	"multiroom-chat/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// hubFixture 组装一个由 mock 存储库支撑的 Hub。
// 测试直接调用 Hub 的处理方法 (不启动 Run goroutine)，
// 这与生产路径等价：Run 也只是串行地调用这些方法。
type hubFixture struct {
	hub            *Hub
	roomRepo       *mocks.MockRoomRepository
	membershipRepo *mocks.MockMembershipRepository
	messageRepo    *mocks.MockMessageRepository
	sessionRepo    *mocks.MockSessionStateRepository
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()

	roomRepo := new(mocks.MockRoomRepository)
	membershipRepo := new(mocks.MockMembershipRepository)
	messageRepo := new(mocks.MockMessageRepository)
	sessionRepo := new(mocks.MockSessionStateRepository)

	h := NewHub(
		service.NewRoomService(roomRepo),
		service.NewPresenceService(membershipRepo),
		service.NewChatService(messageRepo),
		sessionRepo,
	)

	return &hubFixture{
		hub:            h,
		roomRepo:       roomRepo,
		membershipRepo: membershipRepo,
		messageRepo:    messageRepo,
		sessionRepo:    sessionRepo,
	}
}

// newBoundClient 创建一个已绑定身份的测试连接并注册到 Hub。
func (f *hubFixture) newBoundClient(t *testing.T, userID uint, username string) *Client {
	t.Helper()

	session := NewSession()
	session.Bind(userID, username)
	client := NewClient(f.hub, nil, session)

	f.sessionRepo.On("GetCurrentRoom", mock.Anything, userID).Return(uint(0), false, nil).Once()
	f.hub.handleRegister(client)
	return client
}

// enterRoom 让一个已注册连接进入房间，并清空 setup 期间产生的事件。
func (f *hubFixture) enterRoom(t *testing.T, client *Client, roomID uint) {
	t.Helper()

	f.membershipRepo.On("Upsert", mock.Anything, client.session.UserID(), roomID, mock.Anything).Return(nil).Once()
	f.sessionRepo.On("SetCurrentRoom", mock.Anything, client.session.UserID(), roomID).Return(nil).Once()
	f.hub.joinRoom(client, roomID, false)

	require.Equal(t, roomID, client.session.CurrentRoom())
	for c := range f.hub.clients {
		drainEvents(c)
	}
}

// recvEvent 读取连接上待投递的下一个事件。
func recvEvent(t *testing.T, c *Client) (string, json.RawMessage) {
	t.Helper()
	select {
	case raw := <-c.send:
		var env dto.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env.Event, env.Data
	default:
		t.Fatal("expected an event on client send channel, got none")
		return "", nil
	}
}

// assertNoEvent 断言连接上没有待投递的事件。
func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("expected no event, got: %s", raw)
	default:
	}
}

func drainEvents(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func marshalClientEvent(t *testing.T, event string, payload interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(dto.Envelope{Event: event, Data: data})
	require.NoError(t, err)
	return raw
}

func TestRegisterWithoutSessionContextStaysIdle(t *testing.T) {
	f := newHubFixture(t)

	client := f.newBoundClient(t, 1, "alice")

	assert.Contains(t, f.hub.clients, client)
	assert.Equal(t, StateIdle, client.session.State())
	f.sessionRepo.AssertExpectations(t)
}

func TestRegisterResumesRoomFromSessionContext(t *testing.T) {
	f := newHubFixture(t)

	session := NewSession()
	session.Bind(1, "alice")
	client := NewClient(f.hub, nil, session)

	f.sessionRepo.On("GetCurrentRoom", mock.Anything, uint(1)).Return(uint(7), true, nil).Once()
	f.roomRepo.On("FindByID", mock.Anything, uint(7)).Return(&domain.Room{ID: 7, Name: "general"}, nil).Once()
	f.membershipRepo.On("Upsert", mock.Anything, uint(1), uint(7), mock.Anything).Return(nil).Once()
	f.sessionRepo.On("SetCurrentRoom", mock.Anything, uint(1), uint(7)).Return(nil).Once()

	f.hub.handleRegister(client)

	assert.Equal(t, uint(7), client.session.CurrentRoom())
	assert.True(t, f.hub.IsMemberLive(1, 7))

	// 重连路径的加入广播包含连接自身
	event, _ := recvEvent(t, client)
	assert.Equal(t, EventUserJoined, event)
	f.sessionRepo.AssertExpectations(t)
	f.membershipRepo.AssertExpectations(t)
}

func TestRegisterClearsStaleSessionContext(t *testing.T) {
	f := newHubFixture(t)

	session := NewSession()
	session.Bind(1, "alice")
	client := NewClient(f.hub, nil, session)

	f.sessionRepo.On("GetCurrentRoom", mock.Anything, uint(1)).Return(uint(99), true, nil).Once()
	f.roomRepo.On("FindByID", mock.Anything, uint(99)).Return(nil, repository.ErrRoomNotFound).Once()
	f.sessionRepo.On("ClearCurrentRoom", mock.Anything, uint(1)).Return(nil).Once()

	f.hub.handleRegister(client)

	assert.Equal(t, StateIdle, client.session.State())
	assertNoEvent(t, client)
	f.sessionRepo.AssertExpectations(t)
}

func TestJoinRoomEventExcludesJoinerFromBroadcast(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")
	bob := f.newBoundClient(t, 2, "bob")
	f.enterRoom(t, bob, 7)

	f.roomRepo.On("FindByID", mock.Anything, uint(7)).Return(&domain.Room{ID: 7, Name: "general"}, nil).Once()
	f.membershipRepo.On("Upsert", mock.Anything, uint(1), uint(7), mock.Anything).Return(nil).Once()
	f.sessionRepo.On("SetCurrentRoom", mock.Anything, uint(1), uint(7)).Return(nil).Once()

	raw := marshalClientEvent(t, EventJoinRoom, dto.JoinRoomPayload{RoomID: 7})
	f.hub.handleEvent(alice, raw)

	assert.Equal(t, uint(7), alice.session.CurrentRoom())

	// 已在房间内的 bob 收到加入事件，发起者 alice 收不到
	event, data := recvEvent(t, bob)
	assert.Equal(t, EventUserJoined, event)
	var payload dto.UserRoomEventPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "alice", payload.Username)
	assert.Equal(t, "alice entered the room.", payload.Message)

	assertNoEvent(t, alice)
}

func TestJoinSecondRoomLeavesFirstCompletely(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")
	bob := f.newBoundClient(t, 2, "bob")
	f.enterRoom(t, alice, 1)
	f.enterRoom(t, bob, 1)

	// 隐式 Leave: 删除旧房间成员关系并广播离开事件
	f.membershipRepo.On("Delete", mock.Anything, uint(1), uint(1)).Return(nil).Once()
	f.sessionRepo.On("ClearCurrentRoom", mock.Anything, uint(1)).Return(nil).Once()
	f.membershipRepo.On("Upsert", mock.Anything, uint(1), uint(2), mock.Anything).Return(nil).Once()
	f.sessionRepo.On("SetCurrentRoom", mock.Anything, uint(1), uint(2)).Return(nil).Once()

	f.hub.joinRoom(alice, 2, false)

	assert.Equal(t, uint(2), alice.session.CurrentRoom())
	assert.False(t, f.hub.IsMemberLive(1, 1), "no residual subscription in the old room")
	assert.True(t, f.hub.IsMemberLive(1, 2))

	// 旧房间的 bob 收到 alice 的离开事件
	event, _ := recvEvent(t, bob)
	assert.Equal(t, EventUserLeft, event)
	f.membershipRepo.AssertExpectations(t)
}

func TestRejoinSameRoomDoesNotDuplicateState(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")
	f.enterRoom(t, alice, 7)

	// 重复加入同一房间只刷新成员关系，不触发隐式 Leave
	f.membershipRepo.On("Upsert", mock.Anything, uint(1), uint(7), mock.Anything).Return(nil).Once()
	f.sessionRepo.On("SetCurrentRoom", mock.Anything, uint(1), uint(7)).Return(nil).Once()

	f.hub.joinRoom(alice, 7, false)

	assert.Equal(t, uint(7), alice.session.CurrentRoom())
	f.membershipRepo.AssertNotCalled(t, "Delete", mock.Anything, uint(1), uint(7))
	f.membershipRepo.AssertExpectations(t)
}

func TestDisconnectCleanupRunsExactlyOnce(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")
	f.enterRoom(t, alice, 7)

	f.membershipRepo.On("Delete", mock.Anything, uint(1), uint(7)).Return(nil).Once()
	f.sessionRepo.On("ClearCurrentRoom", mock.Anything, uint(1)).Return(nil).Once()

	f.hub.handleUnregister(alice)
	// 重复注销 (例如读写 goroutine 竞争退出) 必须是 no-op
	f.hub.handleUnregister(alice)

	assert.NotContains(t, f.hub.clients, alice)
	assert.False(t, f.hub.IsMemberLive(1, 7))
	f.membershipRepo.AssertNumberOfCalls(t, "Delete", 1)
}

func TestSendMessageWhileIdleIsRejected(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")

	raw := marshalClientEvent(t, EventSendMessage, dto.SendMessagePayload{RoomID: 7, Message: "hello"})
	f.hub.handleEvent(alice, raw)

	event, data := recvEvent(t, alice)
	assert.Equal(t, EventError, event)
	var payload dto.ErrorPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "not in room", payload.Message)

	f.messageRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSendMessagePersistFailureIsNotBroadcast(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")
	bob := f.newBoundClient(t, 2, "bob")
	f.enterRoom(t, alice, 7)
	f.enterRoom(t, bob, 7)

	f.messageRepo.On("Save", mock.Anything, mock.Anything).Return(fmt.Errorf("db connection lost")).Once()

	raw := marshalClientEvent(t, EventSendMessage, dto.SendMessagePayload{RoomID: 7, Message: "hello"})
	f.hub.handleEvent(alice, raw)

	// 持久化失败: 发送者收到错误，房间内其他人什么都收不到
	event, _ := recvEvent(t, alice)
	assert.Equal(t, EventError, event)
	assertNoEvent(t, bob)
}

func TestChatMessageReachesAllRoomMembersIncludingSender(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")
	bob := f.newBoundClient(t, 2, "bob")
	f.enterRoom(t, alice, 7)
	f.enterRoom(t, bob, 7)

	f.messageRepo.On("Save", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
		return m.RoomID == 7 && m.UserID == 1 && m.Content == "hello" && m.Kind == domain.MessageKindText
	})).Return(nil).Once()

	raw := marshalClientEvent(t, EventSendMessage, dto.SendMessagePayload{RoomID: 7, Message: "hello"})
	f.hub.handleEvent(alice, raw)

	for _, c := range []*Client{alice, bob} {
		event, data := recvEvent(t, c)
		assert.Equal(t, EventNewMessage, event)
		var payload dto.ChatMessagePayload
		require.NoError(t, json.Unmarshal(data, &payload))
		assert.Equal(t, "alice", payload.Username)
		assert.Equal(t, "hello", payload.Message)
		assert.Equal(t, domain.MessageKindText, payload.Kind)
		assert.Equal(t, uint(7), payload.RoomID)
	}
	f.messageRepo.AssertExpectations(t)
}

func TestSendMessageToDifferentRoomIsRejected(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")
	f.enterRoom(t, alice, 7)

	raw := marshalClientEvent(t, EventSendMessage, dto.SendMessagePayload{RoomID: 8, Message: "hello"})
	f.hub.handleEvent(alice, raw)

	event, _ := recvEvent(t, alice)
	assert.Equal(t, EventError, event)
	f.messageRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUnauthenticatedEventIsRejected(t *testing.T) {
	f := newHubFixture(t)

	client := NewClient(f.hub, nil, NewSession())
	f.hub.handleRegister(client)

	raw := marshalClientEvent(t, EventJoinRoom, dto.JoinRoomPayload{RoomID: 7})
	f.hub.handleEvent(client, raw)

	event, data := recvEvent(t, client)
	assert.Equal(t, EventError, event)
	var payload dto.ErrorPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "not authenticated", payload.Message)
	f.roomRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestJoinNonexistentRoomIsRejected(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")

	f.roomRepo.On("FindByID", mock.Anything, uint(99)).Return(nil, repository.ErrRoomNotFound).Once()

	raw := marshalClientEvent(t, EventJoinRoom, dto.JoinRoomPayload{RoomID: 99})
	f.hub.handleEvent(alice, raw)

	event, data := recvEvent(t, alice)
	assert.Equal(t, EventError, event)
	var payload dto.ErrorPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "room not found", payload.Message)

	assert.Equal(t, StateIdle, alice.session.State())
	f.membershipRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMalformedEventIsDroppedWithoutReply(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")

	f.hub.handleEvent(alice, []byte("{not json"))
	f.hub.handleEvent(alice, []byte(`{"data": {"room_id": 7}}`))

	// 协议层错误只丢弃请求，不回复也不影响连接
	assertNoEvent(t, alice)
	assert.Contains(t, f.hub.clients, alice)
}

func TestGetActiveUsersRepliesRequesterOnly(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")
	bob := f.newBoundClient(t, 2, "bob")
	f.enterRoom(t, alice, 7)
	f.enterRoom(t, bob, 7)

	f.membershipRepo.On("CountDistinctUsers", mock.Anything, uint(7)).Return(int64(2), nil).Once()

	raw := marshalClientEvent(t, EventGetActiveUsers, dto.ActiveUsersPayload{RoomID: 7})
	f.hub.handleEvent(alice, raw)

	event, data := recvEvent(t, alice)
	assert.Equal(t, EventActiveUsers, event)
	var payload dto.ActiveUsersUpdatePayload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, uint(7), payload.RoomID)
	assert.Equal(t, int64(2), payload.Count)

	assertNoEvent(t, bob)
}

func TestExplicitLeaveNotifiesLeaverAndRemaining(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")
	bob := f.newBoundClient(t, 2, "bob")
	f.enterRoom(t, alice, 7)
	f.enterRoom(t, bob, 7)

	f.membershipRepo.On("Delete", mock.Anything, uint(1), uint(7)).Return(nil).Once()
	f.sessionRepo.On("ClearCurrentRoom", mock.Anything, uint(1)).Return(nil).Once()

	raw := marshalClientEvent(t, EventLeaveRoom, dto.LeaveRoomPayload{RoomID: 7})
	f.hub.handleEvent(alice, raw)

	assert.Equal(t, StateIdle, alice.session.State())

	for _, c := range []*Client{alice, bob} {
		event, data := recvEvent(t, c)
		assert.Equal(t, EventUserLeft, event)
		var payload dto.UserRoomEventPayload
		require.NoError(t, json.Unmarshal(data, &payload))
		assert.Equal(t, "alice left the room.", payload.Message)
	}
}

func TestLeaveRoomForWrongRoomIsDropped(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")
	f.enterRoom(t, alice, 7)

	raw := marshalClientEvent(t, EventLeaveRoom, dto.LeaveRoomPayload{RoomID: 8})
	f.hub.handleEvent(alice, raw)

	assert.Equal(t, uint(7), alice.session.CurrentRoom())
	f.membershipRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishBroadcastsToSubscribers(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")
	f.enterRoom(t, alice, 7)

	eventBytes, err := NewUserJoinedEvent("carol", 7)
	require.NoError(t, err)
	f.hub.broadcastToRoom(7, eventBytes, nil)

	event, data := recvEvent(t, alice)
	assert.Equal(t, EventUserJoined, event)
	var payload dto.UserRoomEventPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "carol", payload.Username)
}

func TestDisconnectBroadcastsLeaveToRemainingMembers(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")
	bob := f.newBoundClient(t, 2, "bob")
	f.enterRoom(t, alice, 7)
	f.enterRoom(t, bob, 7)

	f.membershipRepo.On("Delete", mock.Anything, uint(2), uint(7)).Return(nil).Once()
	f.sessionRepo.On("ClearCurrentRoom", mock.Anything, uint(2)).Return(nil).Once()

	f.hub.handleUnregister(bob)

	// 留在房间里的 alice 收到 bob 的离开事件
	event, data := recvEvent(t, alice)
	assert.Equal(t, EventUserLeft, event)
	var payload dto.UserRoomEventPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "bob", payload.Username)
	assert.Equal(t, "bob left the room.", payload.Message)

	assert.True(t, f.hub.IsMemberLive(1, 7))
	assert.False(t, f.hub.IsMemberLive(2, 7))
}

func TestEnqueueAfterStopDoesNotPanic(t *testing.T) {
	f := newHubFixture(t)
	client := NewClient(f.hub, nil, NewSession())

	f.hub.Stop()
	f.hub.Stop() // 重复 Stop 也必须安全

	// WebSocket 连接在 http.Server.Shutdown 之后仍然存活，
	// 停止后的入队和注销都不能让进程崩溃
	assert.NotPanics(t, func() {
		f.hub.QueueMessage(HubMessage{Type: "unregister", Client: client})
		f.hub.Publish(7, []byte(`{"event":"user_joined_room"}`))
		client.enqueueUnregister()
	})
}

func TestRunExitsAfterStop(t *testing.T) {
	f := newHubFixture(t)

	finished := make(chan struct{})
	go func() {
		f.hub.Run()
		close(finished)
	}()

	f.hub.Stop()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after Stop")
	}
}

func TestUnregisterIsNotDroppedWhenQueueIsBackedUp(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")
	f.enterRoom(t, alice, 7)

	f.membershipRepo.On("Delete", mock.Anything, uint(1), uint(7)).Return(nil).Once()
	f.sessionRepo.On("ClearCurrentRoom", mock.Anything, uint(1)).Return(nil).Once()

	// 把队列填满，模拟 Hub 循环落后于生产者的时刻
	for i := 0; i < cap(f.hub.messageChan); i++ {
		f.hub.messageChan <- HubMessage{Type: "noop"}
	}

	// 注销投递必须等到队列有空位，而不是超时丢弃
	go alice.enqueueUnregister()

	for i := 0; i < cap(f.hub.messageChan); i++ {
		msg := <-f.hub.messageChan
		require.Equal(t, "noop", msg.Type)
	}

	var unregister HubMessage
	select {
	case unregister = <-f.hub.messageChan:
	case <-time.After(2 * time.Second):
		t.Fatal("unregister was not enqueued after the queue drained")
	}
	require.Equal(t, "unregister", unregister.Type)
	require.Same(t, alice, unregister.Client)

	// 清理最终执行: 死连接从房间表消失，成员关系行被删除
	f.hub.handleUnregister(unregister.Client)
	assert.False(t, f.hub.IsMemberLive(1, 7))
	assert.NotContains(t, f.hub.clients, alice)
	f.membershipRepo.AssertExpectations(t)
}

func TestMarkActiveFailureLeavesNoStateChange(t *testing.T) {
	f := newHubFixture(t)
	alice := f.newBoundClient(t, 1, "alice")

	f.membershipRepo.On("Upsert", mock.Anything, uint(1), uint(7), mock.Anything).Return(fmt.Errorf("db down")).Once()

	f.hub.joinRoom(alice, 7, false)

	assert.Equal(t, StateIdle, alice.session.State())
	assert.False(t, f.hub.IsMemberLive(1, 7))
	event, _ := recvEvent(t, alice)
	assert.Equal(t, EventError, event)
}
