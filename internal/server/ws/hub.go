package ws

import (
	"context"

	"go.uber.org/zap"
)

// BroadcastPolicy decides which connected clients receive a broadcast frame.
// Any dashboard may be watching any user's appliances, so the default fanout
// sends every delta to every client, sender included.
type BroadcastPolicy func(sender, candidate *Client) bool

// BroadcastAll is the default policy: no filtering.
func BroadcastAll(sender, candidate *Client) bool { return true }

type outbound struct {
	sender  *Client
	payload []byte
}

// Hub tracks connected clients and fans out state-change frames.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{}
	policy     BroadcastPolicy
	logger     *zap.Logger
}

// NewHub creates a hub with the given broadcast policy; a nil policy means
// broadcast-to-all.
func NewHub(policy BroadcastPolicy, logger *zap.Logger) *Hub {
	if policy == nil {
		policy = BroadcastAll
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 64),
		done:       make(chan struct{}),
		policy:     policy,
		logger:     logger,
	}
}

// Run owns the client set until ctx is cancelled. All mutation of the set,
// including closing client send channels, happens on this goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Info("client connected", zap.String("client_id", client.id), zap.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			h.logger.Info("client disconnected", zap.String("client_id", client.id), zap.Int("clients", len(h.clients)))

		case msg := <-h.broadcast:
			for client := range h.clients {
				if !h.policy(msg.sender, client) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// Slow consumer: drop it rather than stall the fanout.
					delete(h.clients, client)
					client.closeSend()
				}
			}

		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				client.closeSend()
			}
			h.logger.Info("hub stopping")
			return
		}
	}
}

// Broadcast queues a frame for fanout to all clients selected by the policy.
// Frames queued after the hub has stopped are discarded so in-flight
// dispatches cannot block during shutdown.
func (h *Hub) Broadcast(sender *Client, payload []byte) {
	select {
	case h.broadcast <- outbound{sender: sender, payload: payload}:
	case <-h.done:
	}
}

// Register hands a new client to the hub goroutine.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister releases a client; safe to call after the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
