package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 90 * time.Second
	pingPeriod = 45 * time.Second
)

// WSConn adapts a websocket connection to Subscriber.
type WSConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// NewWSConn wraps conn.
func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn, done: make(chan struct{})}
}

// Send writes payload as one text frame, honouring the ctx deadline.
func (c *WSConn) Send(ctx context.Context, payload []byte) error {
	return c.write(ctx, websocket.TextMessage, payload)
}

func (c *WSConn) write(ctx context.Context, messageType int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultTimeout)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, payload)
}

// Close shuts the connection down. Safe to call more than once.
func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Serve registers the connection with hub, keeps it alive with pings and
// blocks reading until the peer goes away. Inbound messages are discarded.
func (c *WSConn) Serve(ctx context.Context, hub *Hub) {
	hub.Register(c)
	defer func() {
		hub.Unregister(c)
		_ = c.Close()
	}()

	go c.pingLoop(ctx)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *WSConn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = c.Close()
			return
		case <-c.done:
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
			err := c.write(pingCtx, websocket.PingMessage, nil)
			cancel()
			if err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
