// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, event dispatch, and lifecycle control for each
// connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client represents one WebSocket connection to the relay. It owns the
// connection state, the buffered send channel drained by the write pump, and
// the per-connection rate limiter. Room membership lives in the hub's
// registry, not on the client.
type Client struct {
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	closed         bool
	maxMessageSize int64
	throttle       *frameThrottle
	logger         zerolog.Logger
}

// NewClient creates a new Client instance with the provided WebSocket
// connection, hub reference, and client address. The client's send channel is
// buffered to handle message queuing.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, logger zerolog.Logger) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	clientLogger := logger.With().Str("addr", addr).Logger()

	return &Client{
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		addr:           addr,
		closed:         false,
		maxMessageSize: cfg.MaxMessageSize,
		throttle:       newFrameThrottle(cfg.RateLimit, clientLogger),
		logger:         clientLogger,
	}
}

// handleReadError logs appropriate detail based on the error type. Every read
// error terminates the read loop.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn().Int64("limit", c.maxMessageSize).Msg("message exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Debug().Err(err).Msg("client disconnected")
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Debug().Err(err).Msg("client connection closed")
	default:
		c.logger.Warn().Err(err).Msg("websocket read error")
	}
}

// dispatchEvent decodes a named-event envelope and routes it to the matching
// hub handler. Frames that do not parse or name an unknown event are dropped.
func (c *Client) dispatchEvent(raw []byte) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.logger.Warn().Err(err).Msg("invalid event frame")
		return
	}

	switch envelope.Event {
	case EventJoinRoom:
		c.hub.handleJoinRoom(c, envelope.Data)
	case EventLoadMessages:
		c.hub.handleLoadMessages(c, envelope.Data)
	case EventNewMessage:
		c.hub.handleNewMessage(c, envelope.Data)
	default:
		c.logger.Warn().Str("event", envelope.Event).Msg("unknown event; dropping")
	}
}

// readPump reads frames from the connection and dispatches them in arrival
// order. Events from a single connection are therefore processed
// sequentially; a blocking store call only suspends this connection.
func (c *Client) readPump() {
	defer func() {
		// Once the hub's run loop has exited nothing drains unregister, so
		// the handoff must not outlive the hub.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				c.logger.Warn().Err(err).Msg("error closing connection in readPump")
			}
		}
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn().Err(err).Msg("error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn().Err(err).Msg("error setting read deadline in pong handler")
		}
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			break
		}

		if c.throttle != nil && !c.throttle.allow() {
			continue
		}

		c.dispatchEvent(raw)
	}
}

// writePump drains the send channel onto the connection and keeps the
// connection alive with periodic pings. It exits when the send channel is
// closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				c.logger.Warn().Err(err).Msg("error closing connection in writePump")
			}
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn().Err(err).Msg("error setting write deadline")
				return
			}

			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					if !isExpectedCloseError(err) {
						c.logger.Warn().Err(err).Msg("error writing close message")
					}
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn().Err(err).Msg("error writing message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn().Err(err).Msg("error setting write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !isExpectedCloseError(err) {
					c.logger.Warn().Err(err).Msg("error writing ping message")
				}
				return
			}

		case <-c.hub.ctx.Done():
			// Hub shutdown: the send channel will never be closed through the
			// unregister path, so exit instead of waiting for the next ping.
			return
		}
	}
}
