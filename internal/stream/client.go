package stream

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/eventops/flow/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client - WebSocket 연결과 hub 구독을 잇는다
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	sub  *Subscriber
}

func NewClient(hub *Hub, conn *websocket.Conn, tenant string) *Client {
	return &Client{hub: hub, conn: conn, sub: hub.Subscribe(tenant)}
}

// Serve - write pump를 별도 goroutine으로 띄우고 read pump에서 블로킹
func (c *Client) Serve() {
	go c.writePump()
	c.readPump()
}

// readPump - 클라이언트 메시지는 사용하지 않는다. 연결 종료 감지와 pong 처리용
func (c *Client) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("[Stream] websocket read error from %s: %v", c.conn.RemoteAddr(), err)
			}
			return
		}
	}
}

// writePump - 메시지 1건 = WebSocket text frame 1개
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.sub.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("[Stream] websocket write to %s: %v", c.conn.RemoteAddr(), err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
