package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// sendBuffer is the per-client queue; a client that falls this far
	// behind is dropped instead of slowing the conversation down.
	sendBuffer = 64

	writeWait = 10 * time.Second
)

// Client is one connected observer.
type Client struct {
	ID          string
	ConnectedAt time.Time

	conn      *websocket.Conn
	send      chan []byte
	logger    zerolog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, logger zerolog.Logger) *Client {
	return &Client{
		ID:          id,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		logger:      logger.With().Str("client_id", id).Logger(),
		done:        make(chan struct{}),
	}
}

// enqueue hands a frame to the client's write pump. It reports false when
// the client has fallen behind or is closing.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// writePump drains the send queue onto the socket until the client closes
// or a write fails.
func (c *Client) writePump() {
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug().Err(err).Msg("client write failed")
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// close shuts the connection down. Safe to call from any goroutine, any
// number of times.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
