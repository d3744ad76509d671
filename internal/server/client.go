// Package server manages individual WebSocket connections, handling read and
// write pumps, rate limiting, and lifecycle control for each session.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatrelay/chatrelay/internal/chat"
)

const (
	pongWait      = 60 * time.Second
	pingInterval  = 54 * time.Second
	writeDeadline = 10 * time.Second
)

// Client is one WebSocket session. It implements chat.Conn so the routing
// engine can deliver outbound events to it without knowing anything about
// WebSockets.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	logger  *slog.Logger
	addr    string
	closed  bool
	history HistoryConfig
	limiter *rateLimiter
	rate    RateLimitConfig
}

// NewClient creates a Client for an upgraded connection. The send channel is
// buffered; a full buffer means dropped frames for this session only.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, cfg *Config) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     hub,
		logger:  hub.logger.With("addr", addr),
		addr:    addr,
		history: cfg.History,
		limiter: newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rate:    cfg.RateLimit,
	}
}

// Deliver marshals one outbound event and queues it for this session.
// It never blocks; a closed or backed-up session drops the frame.
func (c *Client) Deliver(ev chat.Event) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error("marshal outbound event", "event", ev.Name, "error", err)
		return false
	}
	return c.hub.deliver(c, payload)
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("set initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn("set read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError logs the error and reports whether the read loop should
// stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		c.logger.Warn("message exceeded read limit")
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.logger.Info("client disconnected", "error", err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.logger.Info("connection closed", "error", err)
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		c.logger.Warn("unexpected websocket error", "error", err)
		return true
	}

	c.logger.Warn("websocket read error", "error", err)
	return true
}

// checkRateLimit reports whether the next inbound frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.allow() {
		c.logger.Warn("rate limit exceeded, discarding frame",
			"burst", c.rate.Burst, "refill", c.rate.RefillInterval)
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		// During hub shutdown the Run loop is gone; skip the unregister
		// handoff rather than block on it.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("close connection in read pump", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if !c.checkRateLimit() {
			continue
		}

		c.handleFrame(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleOutbound(message, ok)
	case <-ticker.C:
		return c.handlePing()
	case <-c.hub.ctx.Done():
		return false
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("close connection in write pump", "error", err)
	}
}

// handleOutbound writes one frame, or the close message when the send channel
// has been closed. Returns false when the pump should stop.
func (c *Client) handleOutbound(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		c.logger.Warn("set write deadline", "error", err)
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("write close message", "error", err)
		}
		return false
	}

	return c.writeFrame(message)
}

// writeFrame writes the frame plus any frames already queued behind it,
// newline separated, in one WebSocket message.
func (c *Client) writeFrame(message []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		c.logger.Warn("create frame writer", "error", err)
		return false
	}

	if _, err := w.Write(message); err != nil {
		c.logger.Warn("write frame", "error", err)
		return false
	}

	queued := len(c.send)
	for i := 0; i < queued; i++ {
		if _, err := w.Write([]byte{'\n'}); err != nil {
			c.logger.Warn("write frame separator", "error", err)
			return false
		}
		if _, err := w.Write(<-c.send); err != nil {
			c.logger.Warn("write queued frame", "error", err)
			return false
		}
	}

	if err := w.Close(); err != nil {
		c.logger.Warn("close frame writer", "error", err)
		return false
	}
	return true
}

// handlePing keeps the connection alive between outbound frames.
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		c.logger.Warn("set write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn("write ping", "error", err)
		return false
	}
	return true
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
