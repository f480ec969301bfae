// The server package implements the network-facing half of the game: the
// HTTP/WebSocket frontend, the per-connection adapter, and the session
// gateway that routes frames into rooms.
package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from a peer.
	maxMessageSize = 4096

	// Outbound frames buffered per connection before the peer is considered
	// too slow and dropped.
	sendBufferSize = 64
)

// Conn adapts one websocket connection to the game.Conn contract: Send
// enqueues without blocking and without surfacing transport errors to the
// caller; any write failure tears the connection down and is observed
// through the close path like a peer-initiated close.
type Conn struct {
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.SugaredLogger
}

func newConn(ws *websocket.Conn, logger *zap.SugaredLogger) *Conn {
	return &Conn{
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// RemoteAddr identifies the peer for logging.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// Send enqueues a frame for the write pump. A peer that can't drain its
// buffer loses the connection rather than stalling the room that's
// broadcasting to it.
func (c *Conn) Send(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.logger.Warnf("[conn %s] send buffer full, dropping connection", c.RemoteAddr())
		c.shutdown()
	}
}

// shutdown closes the underlying socket, which unblocks the read pump and
// lets the normal close path run exactly once.
func (c *Conn) shutdown() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with periodic pings. One writePump goroutine per connection is the
// only writer to the socket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump delivers inbound frames to handler in arrival order and invokes
// onClose exactly once when the connection ends for any reason. It blocks
// until then.
func (c *Conn) readPump(handler func(data []byte), onClose func()) {
	defer func() {
		c.shutdown()
		onClose()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debugf("[conn %s] read error: %v", c.RemoteAddr(), err)
			}
			return
		}
		handler(data)
	}
}
