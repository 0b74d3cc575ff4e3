// Package server coordinates client registration, room-scoped message
// broadcast, and connection cleanup for the chat relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillhq/chatrelay/internal/store"
)

// MessageStore is the persistence boundary the hub writes through before any
// broadcast and queries for history pages.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *store.ChatMessage) error
	MessagesByRoom(ctx context.Context, room string, page int) ([]store.ChatMessage, error)
}

// Hub manages all WebSocket client connections, tracks room membership, and
// fans persisted messages out to room members. It maintains client
// registration/unregistration and ensures thread-safe operations through
// mutex protection.
type Hub struct {
	clients    map[*Client]bool
	registry   *Registry
	messages   MessageStore
	broadcast  chan BroadcastMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	logger     zerolog.Logger
}

// NewHub creates and initializes a new Hub instance backed by the given
// message store. The returned Hub is ready to manage WebSocket connections
// once Run is started.
func NewHub(messages MessageStore, logger zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		registry:   NewRegistry(),
		messages:   messages,
		broadcast:  make(chan BroadcastMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn().Interface("panic", r).Msg("recovered from panic in safeSend")
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and room broadcasts. This method should be called in a
// separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn().Msg("received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info().Str("addr", client.addr).Int("clients", clientCount).Msg("client connected")

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.registry.Leave(client)
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				h.logger.Info().Str("addr", client.addr).Int("clients", clientCount).Msg("client disconnected")
			} else {
				h.mutex.Unlock()
			}

		case broadcastMsg := <-h.broadcast:
			h.handleBroadcast(broadcastMsg)
		}
	}
}

// handleBroadcast delivers a message to every connection whose current room
// matches, the sender included.
func (h *Hub) handleBroadcast(broadcastMsg BroadcastMessage) {
	var clientsToRemove []*Client

	delivered := 0
	for _, client := range h.clientSnapshot() {
		room, _, joined := h.registry.Membership(client)
		if !joined || room != broadcastMsg.Room {
			continue
		}
		if h.safeSend(client, broadcastMsg.Payload) {
			delivered++
		} else {
			clientsToRemove = append(clientsToRemove, client)
		}
	}

	h.logger.Debug().Str("room", broadcastMsg.Room).Int("delivered", delivered).Msg("broadcast message")
	h.removeFailedClients(clientsToRemove)
}

// clientSnapshot returns a thread-safe snapshot of all current clients.
func (h *Hub) clientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// removeFailedClients removes clients that failed to receive messages and
// closes their channels.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			h.logger.Warn().Str("addr", client.addr).Msg("client removed due to full send buffer")
		}
	}
	h.mutex.Unlock()

	for _, client := range clientsToRemove {
		h.registry.Leave(client)
	}

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// handleJoinRoom records the connection's membership and acknowledges the
// join to the originating connection only. Joining unconditionally overwrites
// any previous membership.
func (h *Hub) handleJoinRoom(c *Client, data json.RawMessage) {
	var payload JoinRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.logger.Warn().Str("addr", c.addr).Err(err).Msg("invalid joinRoom payload")
		return
	}

	h.registry.Join(c, payload.Room, payload.Username)
	h.logger.Info().Str("addr", c.addr).Str("room", payload.Room).Msg("client joined room")
	h.sendEvent(c, EventJoinRoomSuccess, nil)
}

// handleLoadMessages replies with one page of the room's history, newest
// first, to the originating connection only. Silently ignored when the
// connection has not joined a room.
func (h *Hub) handleLoadMessages(c *Client, data json.RawMessage) {
	room, _, joined := h.registry.Membership(c)
	if !joined {
		return
	}

	var page int
	if len(data) > 0 {
		if err := json.Unmarshal(data, &page); err != nil {
			h.logger.Warn().Str("addr", c.addr).Err(err).Msg("invalid loadMessages payload")
			return
		}
	}

	messages, err := h.messages.MessagesByRoom(h.ctx, room, page)
	if err != nil {
		h.logger.Error().Str("addr", c.addr).Str("room", room).Err(err).Msg("failed to load message history")
		h.sendError(c, "failed to load message history")
		return
	}
	if messages == nil {
		messages = []store.ChatMessage{}
	}

	h.sendEvent(c, EventHistory, messages)
}

// handleNewMessage persists a chat message for the connection's current room
// and broadcasts the stored record to all room members including the sender.
// Persistence completes before the broadcast is enqueued. Silently ignored
// when the connection has not joined a room.
func (h *Hub) handleNewMessage(c *Client, data json.RawMessage) {
	room, username, joined := h.registry.Membership(c)
	if !joined {
		return
	}

	var payload NewMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.logger.Warn().Str("addr", c.addr).Err(err).Msg("invalid newMessage payload")
		return
	}

	msg := &store.ChatMessage{
		Text:      payload.Message,
		Timestamp: time.Now(),
		Room:      room,
		Username:  username,
	}
	if payload.FileURL != "" {
		msg.Text = appendDownloadLink(msg.Text, payload.FileURL)
	}

	if err := h.messages.InsertMessage(h.ctx, msg); err != nil {
		h.logger.Error().Str("addr", c.addr).Str("room", room).Err(err).Msg("failed to persist message")
		h.sendError(c, "failed to store message")
		return
	}

	framed, err := encodeEvent(EventMessage, msg)
	if err != nil {
		h.logger.Error().Str("addr", c.addr).Err(err).Msg("failed to encode message event")
		return
	}

	select {
	case h.broadcast <- BroadcastMessage{Room: room, Payload: framed}:
	case <-h.ctx.Done():
		// Shutdown raced the fan-out: the message is already persisted and
		// will appear in history, only the live broadcast is lost.
	}
}

// sendEvent encodes an envelope and queues it for the originating connection only.
func (h *Hub) sendEvent(c *Client, event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		h.logger.Error().Str("addr", c.addr).Err(err).Msg("failed to encode event")
		return
	}
	if !h.safeSend(c, payload) {
		h.logger.Warn().Str("addr", c.addr).Str("event", event).Msg("dropped event for unreachable client")
	}
}

// sendError reports a failed request back to the connection that issued it.
func (h *Hub) sendError(c *Client, message string) {
	h.sendEvent(c, EventError, ErrorPayload{Error: message})
}

// shutdownClients gracefully closes all active client connections.
func (h *Hub) shutdownClients() {
	h.logger.Info().Msg("shutting down all client connections")

	clients := h.clientSnapshot()
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					h.logger.Warn().Str("addr", client.addr).Err(err).Msg("error closing client connection")
				}
			}
		}
	}

	h.logger.Info().Int("clients", len(clients)).Msg("closed client connections")
}

// Shutdown initiates graceful shutdown of the hub and waits for all
// goroutines to complete. It returns after all client connections are closed
// and goroutines have finished, or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info().Msg("initiating hub shutdown")

	h.cancel()

	// Wait for Run() to complete
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn().Msg("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
