// Package server manages individual WebSocket clients, handling read/write
// pumps, frame decoding, rate limiting, and lifecycle control per connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents one WebSocket connection. It owns the connection state
// and the outbound send queue, and implements Sink so the broadcast engine
// can deliver events to it. Protocol state (name, room) lives in the
// dispatcher's session table, not here.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	dispatcher     *Dispatcher
	addr           string
	log            *slog.Logger
	mu             sync.Mutex
	closed         bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// NewClient creates a new Client for an upgraded connection. The send
// channel is buffered so broadcasts never block and per-recipient ordering
// is preserved.
func NewClient(conn *websocket.Conn, hub *Hub, dispatcher *Dispatcher, id, addr string, cfg *Config, log *slog.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	limit := cfg.RateLimit()

	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		dispatcher:     dispatcher,
		addr:           addr,
		log:            log,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(limit.Burst, limit.RefillInterval),
		rateLimit:      limit,
	}
}

// ID returns the connection identity assigned at upgrade time.
func (c *Client) ID() string {
	return c.id
}

// Deliver marshals an envelope onto the client's send queue. It never
// blocks: a full queue or a closed connection reports failure to the caller
// instead.
func (c *Client) Deliver(e Envelope) bool {
	payload, err := json.Marshal(e)
	if err != nil {
		c.log.Error("failed to encode event", "conn", c.id, "event", e.Event, "error", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// shutdown marks the client closed and releases its send queue. The mutex
// shared with Deliver guarantees nothing sends on the channel after close.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.log.Warn("error setting initial read deadline", "conn", c.id, "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			c.log.Warn("error setting read deadline in pong handler", "conn", c.id, "error", err)
		}
		return nil
	})
}

// handleReadError logs the error by category and returns true if the read
// loop should break.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn("frame exceeded maximum size", "conn", c.id, "max", c.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Info("client disconnected", "conn", c.id, "error", err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.Info("client connection closed", "conn", c.id, "error", err)
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		c.log.Warn("unexpected websocket error", "conn", c.id, "error", err)
		return true
	}

	c.log.Warn("websocket read error", "conn", c.id, "error", err)
	return true
}

// checkRateLimit returns true if the inbound frame should be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn("rate limit exceeded; discarding frame",
			"conn", c.id, "burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// handleFrame decodes one inbound envelope and routes it to the dispatcher.
// A missing payload is passed through as the zero request so the validation
// gate produces the user-facing reason.
func (c *Client) handleFrame(raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.log.Warn("invalid frame", "conn", c.id, "error", err)
		c.Deliver(Envelope{Event: EventError, Data: ErrorEvent{Message: "invalid message format"}})
		return
	}

	switch frame.Event {
	case EventJoinRoom:
		var req JoinRequest
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &req); err != nil {
				c.Deliver(Envelope{Event: EventRoomJoinFailed, Data: JoinFailed{Message: "invalid join payload"}})
				return
			}
		}
		c.dispatcher.Join(c.id, req)

	case EventMessage:
		var req MessageRequest
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &req); err != nil {
				c.Deliver(Envelope{Event: EventError, Data: ErrorEvent{Message: "invalid message payload"}})
				return
			}
		}
		c.dispatcher.Message(c.id, req.Message)

	case EventLeaveRoom:
		c.dispatcher.Leave(c.id)

	default:
		c.Deliver(Envelope{Event: EventError, Data: ErrorEvent{Message: "unknown event: " + frame.Event}})
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				c.log.Warn("error closing connection in readPump", "conn", c.id, "error", err)
			}
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
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when
// the pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleOutbound(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection closes the WebSocket connection, ignoring expected errors.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error closing connection in writePump", "conn", c.id, "error", err)
		}
	}
}

// handleOutbound writes one outbound payload and returns false if the
// connection should be closed.
func (c *Client) handleOutbound(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		c.log.Warn("error setting write deadline", "conn", c.id, "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close frame to the client.
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing close message", "conn", c.id, "error", err)
		}
	}
	return false
}

// writeTextMessage writes a text frame and drains any queued payloads into
// follow-up frames, preserving queue order.
func (c *Client) writeTextMessage(message []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		c.log.Warn("error creating writer", "conn", c.id, "error", err)
		return false
	}

	if _, err := w.Write(message); err != nil {
		c.log.Warn("error writing message", "conn", c.id, "error", err)
		return false
	}

	if err := w.Close(); err != nil {
		c.log.Warn("error closing writer", "conn", c.id, "error", err)
		return false
	}

	n := len(c.send)
	for i := 0; i < n; i++ {
		queued, ok := <-c.send
		if !ok {
			return c.writeCloseMessage()
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, queued); err != nil {
			c.log.Warn("error writing queued message", "conn", c.id, "error", err)
			return false
		}
	}
	return true
}

// handlePing sends a ping frame to keep the connection alive.
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		c.log.Warn("error setting write deadline for ping", "conn", c.id, "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing ping message", "conn", c.id, "error", err)
		}
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
