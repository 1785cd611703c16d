// Package wshandler 负责把 HTTP 请求升级为 WebSocket 连接并接入 Hub。
package wshandler

import (
	"net/http"

	"multiroom-chat/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 允许所有来源连接，生产环境应配置具体的 Origin 校验
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler 处理 WebSocket 升级请求
type Handler struct {
	hub *hub.Hub
}

// NewHandler 创建 Handler 实例
func NewHandler(h *hub.Hub) *Handler {
	if h == nil {
		panic("Hub cannot be nil for websocket Handler")
	}
	return &Handler{hub: h}
}

// Serve 处理 GET /ws：升级连接、绑定会话身份、注册到 Hub。
// 未认证的请求也允许升级，但会话停留在 Unbound，聊天事件会被拒绝。
func (h *Handler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("Failed to upgrade connection to WebSocket")
		return
	}

	session := hub.NewSession()
	if idVal, ok := c.Get("user_id"); ok {
		if userID, ok := idVal.(uint); ok && userID > 0 {
			nameVal, _ := c.Get("username")
			username, _ := nameVal.(string)
			session.Bind(userID, username)
		}
	}

	client := hub.NewClient(h.hub, conn, session)
	if !h.hub.QueueMessage(hub.HubMessage{Type: "register", Client: client}) {
		logrus.WithField("user_id", session.UserID()).Error("Hub queue full, rejecting new WebSocket connection")
		client.CloseConn()
		return
	}

	client.Run()
}
