package server

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gameroom/config"
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws   *websocket.Conn
	cfg  config.GatewayConfig
	mu   sync.Mutex
	send chan []byte
}

func NewClientConn(ws *websocket.Conn, cfg config.GatewayConfig) *ClientConn {
	return &ClientConn{
		ws:   ws,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendBuffer),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃，不阻塞命令循环）
func (c *ClientConn) Enqueue(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send == nil {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Close 关闭发送队列以结束写协程；可重复调用
func (c *ClientConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定时发送 ping
func (c *ClientConn) writePump() {
	c.mu.Lock()
	queue := c.send
	c.mu.Unlock()

	ticker := time.NewTicker(c.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-queue:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端输入，解码后交给 Broker
func (c *ClientConn) readPump(b *Broker, playerID PlayerID, log *zap.SugaredLogger) {
	defer c.ws.Close()
	// 读泵退出时，通知命令循环移除该玩家
	defer b.Disconnect(playerID)
	defer c.Close()
	c.ws.SetReadLimit(c.cfg.ReadLimit)
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error { c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); return nil })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("read error: player=%s err=%v", playerID, err)
			}
			return
		}
		im, err := ParseInput(payload)
		if err != nil {
			log.Debugf("dropping malformed frame: player=%s err=%v", playerID, err)
			continue
		}
		if !b.Submit(playerID, im) {
			return
		}
	}
}

// Gateway WebSocket 接入
type Gateway struct {
	broker   *Broker
	cfg      config.GatewayConfig
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func NewGateway(b *Broker, cfg config.GatewayConfig, allowedOrigins []string, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		broker: b,
		cfg:    cfg,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker 列表为空时允许所有来源（仅开发环境）
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}

// HandleWS 每条连接分配一个新的玩家 UUID，随后由 welcome 消息告知客户端
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warnf("upgrade error: %v", err)
		return
	}

	playerID := PlayerID(uuid.NewString())
	client := NewClientConn(ws, g.cfg)
	if !g.broker.Connect(playerID, client) {
		_ = ws.Close()
		return
	}
	g.log.Debugf("connection opened: player=%s remote=%s", playerID, r.RemoteAddr)

	go client.writePump()
	go client.readPump(g.broker, playerID, g.log)
}
