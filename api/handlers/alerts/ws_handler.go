package alerts

import (
	"net/http"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/alert"
	"github.com/phistudioco/holdingmanager-sub001/internal/auth"
	"github.com/phistudioco/holdingmanager-sub001/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocketHandler 告警实时推送
type WebSocketHandler struct {
	hub      *alert.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建处理器
func NewWebSocketHandler(hub *alert.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect 升级连接并注册订阅，?min_severity= 过滤低级别告警
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if h == nil || h.hub == nil {
		common.ResponseError(c, common.CodeServiceUnavailable, "WebSocket 服务未就绪")
		return
	}
	caller, ok := auth.GetCaller(c)
	if !ok {
		common.ResponseUnauthorized(c, "")
		return
	}
	minSeverity := alert.Severity(c.Query("min_severity"))
	if minSeverity != "" && !minSeverity.Valid() {
		common.ResponseBadRequest(c, "未知告警级别")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	})

	_ = conn.WriteJSON(gin.H{
		"event":       "connected",
		"minSeverity": minSeverity,
	})
	h.hub.Register(caller.UserID, conn, minSeverity)

	go h.readLoop(conn)
}

func (h *WebSocketHandler) readLoop(conn *websocket.Conn) {
	defer func() {
		h.hub.Unregister(conn)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
