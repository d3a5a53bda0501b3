package push

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// Client is one websocket session of a user.
type Client struct {
	id     string
	userID uint64
	conn   *websocket.Conn
	send   chan Message
	closed bool
}

// NewClient wraps conn for userID.  conn may be nil for a session that is
// drained by the caller.
func NewClient(userID uint64, conn *websocket.Conn) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan Message, sendBuffer),
	}
}

// ID identifies the session.
func (c *Client) ID() string { return c.id }

// closeSend is called with the hub lock held.
func (c *Client) closeSend() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Serve registers c, pumps messages until the peer goes away and then
// unregisters it.  It blocks.
func (c *Client) Serve(h *Hub, log logrus.FieldLogger) {
	h.Register(c)
	go c.writePump(log)
	c.readPump(h, log)
}

// readPump only consumes control frames; clients do not send data.
func (c *Client) readPump(h *Hub, log logrus.FieldLogger) {
	defer func() {
		h.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).WithField("session", c.id).Warn("websocket read")
			}
			return
		}
	}
}

func (c *Client) writePump(log logrus.FieldLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				log.WithError(err).WithField("session", c.id).Debug("websocket write")
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
