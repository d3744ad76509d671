// Package server coordinates connection registration, outbound delivery, and
// connection cleanup for the chat relay via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chatrelay/chatrelay/internal/chat"
)

// Hub tracks every open WebSocket connection and owns its lifecycle. Chat
// semantics live in the routing engine; the hub only registers connections,
// launches their pumps, pushes outbound frames into their send buffers, and
// tears everything down on shutdown.
type Hub struct {
	engine     *chat.Engine
	logger     *slog.Logger
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a hub bound to the given routing engine. The returned Hub is
// ready to manage connections once Run is started in its own goroutine.
func NewHub(engine *chat.Engine, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		engine:     engine,
		logger:     logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Engine exposes the routing engine for handlers that bypass the WebSocket
// channel, such as the HTTP history endpoint.
func (h *Hub) Engine() *chat.Engine {
	return h.engine
}

// Register queues a freshly upgraded connection for registration.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// deliver pushes one marshaled frame into a client's send buffer without
// blocking. It returns false when the client is gone or backed up; the caller
// treats that as a skipped delivery, never a retry.
func (h *Hub) deliver(client *Client, payload []byte) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// Run is the hub's main loop, handling registration and unregistration until
// shutdown. It must be called in its own goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("nil client registration skipped")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("client registered", "addr", client.addr, "total", clientCount)

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
			h.dropClient(client)
		}
	}
}

// dropClient removes a client from the hub, closes its send channel, and
// tells the engine the connection is gone. The engine call happens after the
// hub lock is released: the resulting presence fan-out takes the hub's read
// lock through deliver.
func (h *Hub) dropClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	close(client.send)
	h.engine.Disconnect(client)
	h.logger.Info("client unregistered", "addr", client.addr, "total", clientCount)
}

// shutdownClients closes every active connection.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.logger.Warn("error closing client connection", "addr", client.addr, "error", err)
			}
		}
	}

	h.logger.Info("closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown and waits for all pump goroutines to
// finish, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached")
		return context.DeadlineExceeded
	}
}
