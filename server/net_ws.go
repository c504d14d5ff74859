package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait   = 5 * time.Second
	sendBacklog = 64
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
// 写只发生在 writePump；读由持有该连接的会话协程负责
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}

	pongs chan string
}

func NewClientConn(ws *websocket.Conn, readLimit int64) *ClientConn {
	c := &ClientConn{
		ws:    ws,
		send:  make(chan []byte, sendBacklog),
		done:  make(chan struct{}),
		pongs: make(chan string, 4),
	}
	ws.SetReadLimit(readLimit)
	ws.SetPongHandler(func(data string) error {
		select {
		case c.pongs <- data:
		default:
		}
		return nil
	})
	return c
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）；返回是否入队
func (c *ClientConn) Enqueue(b []byte) bool {
	if b == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性丢弃，避免慢客户端拖住广播
		return false
	}
}

// Close 关闭发送队列；writePump 写完积压后发送关闭帧并断开底层连接
// 可重复调用
func (c *ClientConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	close(c.done)
}

// Done 在 Close 之后关闭
func (c *ClientConn) Done() <-chan struct{} { return c.done }

// Ping 发送传输层 ping；WriteControl 可与 writePump 并发调用
func (c *ClientConn) Ping(token string) error {
	return c.ws.WriteControl(websocket.PingMessage, []byte(token), time.Now().Add(writeWait))
}

// Pongs 收到的 pong 负载；只有读协程在跑时才会有数据
func (c *ClientConn) Pongs() <-chan string { return c.pongs }

// ReadMessage 读取一帧文本
func (c *ClientConn) ReadMessage() ([]byte, error) {
	_, payload, err := c.ws.ReadMessage()
	return payload, err
}

func (c *ClientConn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.Close()
			return
		}
	}
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (c *ClientConn) sendError(message string) {
	c.Enqueue(encode(errorMessage{Type: TypeError, Message: message}))
}

// newUpgrader allowed 为空时放行所有来源；没有 Origin 头的非浏览器客户端总是放行
func newUpgrader(allowed []string) websocket.Upgrader {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(set) == 0 || origin == "" {
				return true
			}
			_, ok := set[origin]
			return ok
		},
	}
}

// HandleWS WebSocket 接入：第一帧决定连接角色（init/ready 为主连接，broadcast 为广播连接）
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}

	client := NewClientConn(ws, s.maxPayload)
	Log.Infof("new websocket remote=%s", client.RemoteAddr())

	go client.writePump()
	go s.readPump(client)
}

// readPump 读取第一帧并分派到主连接或广播连接的处理循环
func (s *Server) readPump(c *ClientConn) {
	defer c.Close()

	payload, err := c.ReadMessage()
	if err != nil {
		Log.Infof("websocket closed before handshake remote=%s: %v", c.RemoteAddr(), err)
		return
	}
	msg, err := ParseMessage(payload)
	if err != nil {
		s.metrics.incMalformed()
		Log.Infof("malformed handshake remote=%s: %v", c.RemoteAddr(), err)
		c.sendError("malformed handshake")
		return
	}

	switch m := msg.(type) {
	case *InitMessage:
		s.metrics.incConnection("primary")
		s.servePrimary(c, m)
	case *BroadcastMessage:
		s.metrics.incConnection("broadcast")
		s.serveBroadcast(c, m)
	default:
		s.metrics.incMalformed()
		c.sendError("expected init, ready or broadcast")
	}
	Log.Infof("closed websocket remote=%s", c.RemoteAddr())
}

// logClosure 正常关闭与异常断开只在日志上区分
func logClosure(role, id string, err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		Log.Infof("%s socket closed id=%s", role, id)
		return
	}
	Log.Infof("%s socket dropped id=%s: %v", role, id, err)
}
