package broadcast

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// DefaultQueueSize is the number of outbound frames buffered per client.
const DefaultQueueSize = 256

// Conn is the part of a websocket connection the client writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a connection handle: the only path for pushing frames to one
// client session. A single writer goroutine drains the queue, so frames are
// written in the order they were queued.
type Client struct {
	id       string
	username string
	conn     Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
}

// NewClient creates a client over conn. Call WritePump to start delivery.
func NewClient(id, username string, conn Conn, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{
		id:       id,
		username: username,
		conn:     conn,
		send:     make(chan []byte, queueSize),
		done:     make(chan struct{}),
	}
}

// ID returns the connection handle ID.
func (c *Client) ID() string {
	return c.id
}

// Username returns the username the connection was opened with.
func (c *Client) Username() string {
	return c.username
}

// Send queues a frame without blocking. It reports false when the client is
// closed or its queue is full.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// WritePump writes queued frames until the client is closed or a write fails.
func (c *Client) WritePump() error {
	for {
		select {
		case <-c.done:
			return nil
		case data := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return err
			}
		}
	}
}

// Close stops the write pump and closes the connection. Safe to call twice.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
