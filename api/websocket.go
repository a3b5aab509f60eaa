package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/ericfitz/whiteboard/auth"
	"github.com/ericfitz/whiteboard/internal/collab"
	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/ericfitz/whiteboard/internal/slogging"
)

// ErrSendBufferFull is returned by Send when a client is not reading fast
// enough; the connection is closed.
var ErrSendBufferFull = errors.New("send buffer full")

// originChecker allows the listed origins. "*" allows any origin; an empty
// list falls back to gorilla's same-host check.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(strings.ToLower(origin), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]
		if !ok {
			slogging.Get().Warn("Rejected websocket origin %s from %s", origin, r.RemoteAddr)
		}
		return ok
	}
}

// HandleWebSocket authenticates the handshake token, upgrades the request and
// attaches the connection to the collaboration hub. A bad token still
// upgrades, then gets a policy-violation close frame and no session.
func (s *Server) HandleWebSocket(c *gin.Context) {
	logger := slogging.Get().WithContext(c)

	token := c.Query("token")
	if token == "" {
		token, _ = auth.BearerToken(c.GetHeader("Authorization"))
	}

	var identity auth.Identity
	verifyErr := auth.ErrMissingToken
	if token != "" {
		identity, verifyErr = s.verifier.Verify(c.Request.Context(), token)
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Failed to upgrade websocket connection: %v", err)
		return
	}

	if verifyErr != nil {
		logger.Warn("Websocket handshake rejected from %s: %v", c.ClientIP(), verifyErr)
		closeWithCode(conn, websocket.ClosePolicyViolation, "authentication failed", s.ws.WriteWait)
		return
	}

	wc := newWSConnection(s.newConnID(), identity.UserID, conn, s.ws, s.wsLogging)
	if _, err := s.dispatcher.Register(c.Request.Context(), wc, identity.UserID, identity.Name); err != nil {
		logger.Error("Failed to register websocket connection %s for user %s: %v", wc.id, identity.UserID, err)
		closeWithCode(conn, websocket.CloseInternalServerErr, "registration failed", s.ws.WriteWait)
		return
	}

	slogging.LogWebSocketConnection("connected", wc.id, identity.UserID, c.ClientIP())
	go wc.writePump()
	go wc.readPump(s.hub)
}

func closeWithCode(conn *websocket.Conn, code int, text string, wait time.Duration) {
	msg := websocket.FormatCloseMessage(code, text)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wait)); err != nil {
		slogging.Get().Debug("Failed to send close message: %v", err)
	}
	if err := conn.Close(); err != nil {
		slogging.Get().Debug("Failed to close connection: %v", err)
	}
}

// wsConnection adapts a gorilla connection to collab.Connection. Frames are
// queued on send and written by writePump, so Send never blocks the hub.
type wsConnection struct {
	id     string
	userID string
	conn   *websocket.Conn
	cfg    config.WebSocketConfig
	logCfg slogging.WebSocketLoggingConfig

	send      chan []byte
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func newWSConnection(id, userID string, conn *websocket.Conn, cfg config.WebSocketConfig, logCfg slogging.WebSocketLoggingConfig) *wsConnection {
	return &wsConnection{
		id:     id,
		userID: userID,
		conn:   conn,
		cfg:    cfg,
		logCfg: logCfg,
		send:   make(chan []byte, cfg.SendBufferSize),
		done:   make(chan struct{}),
	}
}

func (c *wsConnection) ID() string { return c.id }

func (c *wsConnection) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

func (c *wsConnection) Send(data []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return collab.ErrConnectionClosed
	}
	select {
	case c.send <- data:
		c.mu.RUnlock()
		slogging.LogWebSocketMessage(slogging.WSMessageOutbound, c.id, c.userID,
			gjson.GetBytes(data, "type").String(), data, c.logCfg)
		return nil
	default:
		c.mu.RUnlock()
		slogging.Get().Warn("Send buffer full for connection %s (user %s), closing", c.id, c.userID)
		_ = c.Close()
		return fmt.Errorf("connection %s: %w", c.id, ErrSendBufferFull)
	}
}

// Close stops the write pump, which sends a close frame and closes the
// socket. It is safe to call more than once.
func (c *wsConnection) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

func (c *wsConnection) readPump(hub *collab.Hub) {
	defer func() {
		_ = c.Close()
		if err := hub.Closed(c.id); err != nil {
			slogging.Get().Debug("Close of connection %s not delivered to hub: %v", c.id, err)
		}
		slogging.LogWebSocketConnection("disconnected", c.id, c.userID, c.conn.RemoteAddr().String())
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slogging.Get().Warn("Websocket read error on connection %s (user %s): %v", c.id, c.userID, err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			slogging.Get().Debug("Ignoring non-text frame on connection %s", c.id)
			continue
		}

		slogging.LogWebSocketMessage(slogging.WSMessageInbound, c.id, c.userID,
			gjson.GetBytes(data, "type").String(), data, c.logCfg)
		if err := hub.Submit(c.id, data); err != nil {
			slogging.Get().Warn("Dropping connection %s: %v", c.id, err)
			return
		}
	}
}

func (c *wsConnection) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slogging.Get().Debug("Write to connection %s failed: %v", c.id, err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				slogging.Get().Debug("Ping to connection %s failed: %v", c.id, err)
				_ = c.Close()
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteWait))
			return
		}
	}
}
