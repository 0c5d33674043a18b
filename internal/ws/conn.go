package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"notify-service/internal/auth"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Clients only answer pings;
	// they have no business sending large frames.
	maxMessageSize = 512

	// Outbound frames buffered per connection before Send fails.
	sendBuffer = 256
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is one open connection, owned by its registry entry from the moment
// it is registered until the transport goes away. No other component keeps
// the raw transport handle after registration.
type Conn struct {
	id       string
	identity auth.Identity
	sock     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	logger   *slog.Logger

	closeOnce sync.Once
	onClose   func(*Conn)
}

func newConn(identity auth.Identity, sock *websocket.Conn, onClose func(*Conn), logger *slog.Logger) *Conn {
	return &Conn{
		id:       uuid.New().String(),
		identity: identity,
		sock:     sock,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		logger:   logger,
		onClose:  onClose,
	}
}

func (c *Conn) ID() string              { return c.id }
func (c *Conn) Identity() auth.Identity { return c.identity }

// Send queues payload for delivery on this connection. Frames queued on a
// single connection are written in Send order. Send fails fast when the
// connection is closed or the peer cannot drain its buffer; it never blocks
// the caller.
func (c *Conn) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close tears the connection down. Safe to call more than once and safe to
// race with transport-driven shutdown.
func (c *Conn) Close() error {
	c.shutdown()
	return nil
}

// shutdown is the single cleanup path: transport errors, ping failures and
// explicit Close all funnel here exactly once.
func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.sock.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
		c.logger.Debug("connection closed", "connID", c.id, "userID", c.identity.UserID)
	})
}

// run starts the read and write pumps. Must be called exactly once, after
// the connection is registered.
func (c *Conn) run() {
	go c.writePump()
	go c.readPump()
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case msg := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("write failed", "connID", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			c.sock.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump drains inbound frames to keep pong handling alive. Clients do
// not speak to this subsystem; any read error means the transport is gone
// and triggers cleanup.
func (c *Conn) readPump() {
	defer c.shutdown()

	c.sock.SetReadLimit(maxMessageSize)
	c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		c.sock.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.sock.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read failed", "connID", c.id, "error", err)
			}
			return
		}
	}
}
