package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/emberchat/ember/internal/models"
)

// Client is one live connection bound to an authenticated user. A user may
// hold several clients at once (multi-device).
type Client struct {
	ID     string
	UserID string
	Handle string
	Conn   ConnLike
	Send   chan []byte

	hub       *Hub
	done      chan struct{}
	closeOnce sync.Once
}

type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

func NewClient(id string, user *models.User, conn ConnLike, hub *Hub) *Client {
	return &Client{
		ID:     id,
		UserID: user.ID,
		Handle: user.Handle,
		Conn:   conn,
		Send:   make(chan []byte, hub.opts.SendQueueSize),
		hub:    hub,
		done:   make(chan struct{}),
	}
}

// shutdown stops the write pump and closes the socket. Safe to call more
// than once; Send is never closed, so a broadcast racing a disconnect may
// still enqueue and the frame is simply dropped.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.Conn.Close()
	})
}

// ReadPump decodes inbound frames and dispatches them to the hub. Frames
// from one connection are handled in arrival order. Exits on read error and
// hands the connection to the unregister path.
func (c *Client) ReadPump() {
	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			c.hub.UnregisterChan <- c
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.sendError("", ErrValidation)
			continue
		}
		if err := c.hub.Dispatch(context.Background(), c, &f); err != nil {
			c.sendError(f.Op, err)
		}
	}
}

// WritePump drains the send queue to the socket and keeps the connection
// alive with periodic pings.
func (c *Client) WritePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data := <-c.Send:
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// push enqueues without blocking; a slow client drops frames rather than
// stalling a broadcast.
func (c *Client) push(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Client) sendError(op string, err error) {
	c.push(encodeEvent(EventError, ErrorEvent{
		Op:      op,
		Code:    ErrorCode(err),
		Message: err.Error(),
	}))
}
