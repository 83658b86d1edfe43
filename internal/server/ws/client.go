package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 32
)

// Client is one websocket connection. No per-connection state is held beyond
// the connection itself and its outbound queue.
type Client struct {
	id         string
	hub        *Hub
	dispatcher *Dispatcher
	conn       *websocket.Conn
	send       chan []byte
	logger     *zap.Logger

	// Send runs on the readPump goroutine while the hub goroutine owns the
	// close of the send channel; mu and closed keep the two from racing.
	mu     sync.Mutex
	closed bool
}

func newClient(id string, hub *Hub, dispatcher *Dispatcher, conn *websocket.Conn, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		id:         id,
		hub:        hub,
		dispatcher: dispatcher,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		logger:     logger,
	}
}

// Send queues a frame for this client only. The frame is dropped when the
// outbound queue is full or the hub has already released the client.
func (c *Client) Send(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("dropping frame for slow client", zap.String("client_id", c.id))
	}
}

// closeSend is called by the hub goroutine only. After it returns, Send
// becomes a no-op and writePump drains to the close frame.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump relays inbound frames to the dispatcher until the connection dies,
// then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		c.dispatcher.HandleMessage(ctx, c, message)
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
