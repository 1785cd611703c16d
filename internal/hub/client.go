package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client 代表一个连接到 Hub 的 WebSocket 连接。
// 它只负责搬运字节；所有状态转换都由 Hub 的事件循环执行。
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *RoomSession
	send    chan []byte
}

// NewClient 创建一个新的 Client 实例。
// session 必须已经完成身份绑定 (或有意保持 Unbound)。
func NewClient(hub *Hub, conn *websocket.Conn, session *RoomSession) *Client {
	if session == nil {
		session = NewSession()
	}
	return &Client{
		hub:     hub,
		conn:    conn,
		session: session,
		send:    make(chan []byte, 256),
	}
}

// Run 启动客户端的读写 goroutine。
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// Session 返回连接的会话记录。
func (c *Client) Session() *RoomSession { return c.session }

// CloseConn 关闭底层 WebSocket 连接。
func (c *Client) CloseConn() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// ReadPump 将消息从 WebSocket 连接泵送到 Hub 的处理通道。
// 任何读取错误 (包括突然断网) 都会触发 defer 中的注销请求，
// 这是断连清理的唯一入口，保证 Leave 转换对每次连接丢失恰好
// 执行一次。
func (c *Client) ReadPump() {
	defer func() {
		c.enqueueUnregister()
		c.conn.Close()
		logrus.WithField("user_id", c.session.UserID()).Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithField("user_id", c.session.UserID())
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		eventMsg := HubMessage{
			Type:    "event",
			Client:  c,
			RawData: message,
		}
		// 非阻塞发送到 Hub，处理不过来则丢弃该请求
		select {
		case c.hub.messageChan <- eventMsg:
		default:
			logrus.WithField("user_id", c.session.UserID()).Warn("Hub message channel full, dropping client message")
		}
	}
}

// enqueueUnregister 阻塞投递注销请求。
// 注销不能像普通事件一样在队列繁忙时被丢弃：丢掉注销会让死连接
// 永远留在房间表里，IsMemberLive 持续返回 true，对账任务也无法
// 清理对应的成员关系行。Run 循环在运行期间总会消费队列；Hub 已
// 停止时通过 done 直接返回。
func (c *Client) enqueueUnregister() {
	select {
	case c.hub.messageChan <- HubMessage{Type: "unregister", Client: c}:
	case <-c.hub.done:
	}
}

// WritePump 将消息从 send 通道泵送到 WebSocket 连接，
// 并定期发送 Ping 以保持连接活跃、探测断开。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithField("user_id", c.session.UserID()).Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭 (注销时)
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("user_id", c.session.UserID()).WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithField("user_id", c.session.UserID()).WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}
