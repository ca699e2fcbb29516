package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"DMChat/logger"
)

const (
	pingInterval   = 25 * time.Second
	writeWait      = 10 * time.Second
	firstPingDelay = 5 * time.Second
)

// Client represents one live connection to the gateway.
// The Send queue is consumed by a single writer goroutine; everything else
// only enqueues.
type Client struct {
	ConnID string
	UserID string
	WS     *websocket.Conn
	Send   chan []byte

	closeOnce sync.Once
	done      chan struct{}
	reason    string
}

func NewClient(connID, userID string, ws *websocket.Conn, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 256
	}
	return &Client{
		ConnID: connID,
		UserID: userID,
		WS:     ws,
		Send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// ForceClose signals the writer goroutine to close the connection. The
// actual unregister happens in the connection's own teardown path, not here
// (cooperative cancellation).
func (c *Client) ForceClose(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// Closed reports whether a close has been signalled.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// enqueue puts a frame on the send queue without blocking. A full queue
// (slow client) drops the frame.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// writeLoop is the single writer for the connection: drains the send queue,
// emits pings, and on close signal sends the close frame and closes the
// socket (which in turn unblocks the read loop).
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	first := time.NewTimer(firstPingDelay)
	defer func() {
		ticker.Stop()
		first.Stop()
		_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.WS.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, c.reason))
		_ = c.WS.Close()
		logger.Debugf("[WS] writer closed conn=%s user=%s reason=%s", c.ConnID, c.UserID, c.reason)
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.Send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debugf("[WS] write err conn=%s user=%s err=%v", c.ConnID, c.UserID, err)
				c.ForceClose("write error")
				return
			}
		case <-first.C:
			if err := c.ping(); err != nil {
				c.ForceClose("ping error")
				return
			}
		case <-ticker.C:
			if err := c.ping(); err != nil {
				c.ForceClose("ping error")
				return
			}
		}
	}
}

func (c *Client) ping() error {
	_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WS.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait))
}
