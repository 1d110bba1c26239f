package websocket

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"lifesync-server/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var (
	ErrClosed     = errors.New("connection closed")
	ErrBufferFull = errors.New("send buffer full")
)

type Conn struct {
	id             string
	token          string
	ws             *websocket.Conn
	send           chan []byte
	done           chan struct{}
	state          atomic.Int32
	closeOnce      sync.Once
	handler        domain.MessageHandler
	maxMessageSize int64
}

func NewConn(id, token string, ws *websocket.Conn, h domain.MessageHandler, maxMessageSize int64) *Conn {
	return &Conn{
		id:             id,
		token:          token,
		ws:             ws,
		send:           make(chan []byte, sendBuffer),
		done:           make(chan struct{}),
		handler:        h,
		maxMessageSize: maxMessageSize,
	}
}

func (c *Conn) ID() string    { return c.id }
func (c *Conn) Token() string { return c.token }

func (c *Conn) State() domain.ConnState {
	return domain.ConnState(c.state.Load())
}

// Send queues data for the write pump without blocking.
func (c *Conn) Send(data []byte) error {
	if c.State() == domain.StateClosed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(domain.StateClosed))
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// Start hands the connection to the handler and starts the pumps. The write
// pump runs first so the initialize frame is flushed as soon as it is queued.
func (c *Conn) Start() {
	go c.writePump()
	c.handler.Connect(c)
	c.state.CompareAndSwap(int32(domain.StateConnected), int32(domain.StateActive))
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.handler.Disconnect(c)
		c.Close()
	}()

	if c.maxMessageSize > 0 {
		c.ws.SetReadLimit(c.maxMessageSize)
	}
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Error("read error", "clientId", c.id, "error", err)
			}
			return
		}

		c.handler.Handle(c, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("write error", "clientId", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
