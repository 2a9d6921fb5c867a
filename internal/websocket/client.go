package websocket

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// enqueueWait bounds how long a reliable send may block on a full
	// queue before the hub declares the connection wedged.
	enqueueWait = 5 * time.Second
)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	gateway *Gateway

	ConnID    string
	UserID    uuid.UUID
	SessionID uuid.UUID
	ProjectID uuid.UUID

	// Send carries doc ops, comments and control frames. These are
	// never silently dropped; a persistently full queue kills the
	// connection instead.
	Send chan []byte

	// presence is a latest-wins slot: out-of-date presence frames are
	// worthless, so a newer one replaces an unconsumed older one.
	presence chan []byte

	// done signals shutdown to writePump and to senders parked in
	// enqueue. Send itself is never closed: broadcast goroutines may
	// still be sending on it when the hub drops the client.
	done      chan struct{}
	closeOnce sync.Once

	// files this connection joined, released on disconnect
	docsMu sync.Mutex
	docs   map[string]struct{}
}

func newClient(hub *Hub, gateway *Gateway, conn *websocket.Conn, userID, sessionID, projectID uuid.UUID, buffer int) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		gateway:   gateway,
		ConnID:    uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		ProjectID: projectID,
		Send:      make(chan []byte, buffer),
		presence:  make(chan []byte, 1),
		done:      make(chan struct{}),
		docs:      make(map[string]struct{}),
	}
}

// close marks the client dead. Safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue queues a reliable frame, blocking up to enqueueWait. It
// reports false when the queue stayed full, meaning the connection
// should be torn down.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- frame:
		return true
	default:
	}
	timer := time.NewTimer(enqueueWait)
	defer timer.Stop()
	select {
	case c.Send <- frame:
		return true
	case <-c.done:
		return false
	case <-timer.C:
		return false
	}
}

// enqueuePresence replaces any unconsumed presence frame with the
// newest one.
func (c *Client) enqueuePresence(frame []byte) {
	for {
		select {
		case c.presence <- frame:
			return
		default:
			select {
			case <-c.presence:
			default:
			}
		}
	}
}

func (c *Client) trackDoc(filePath string) (first bool) {
	c.docsMu.Lock()
	defer c.docsMu.Unlock()
	if _, ok := c.docs[filePath]; ok {
		return false
	}
	c.docs[filePath] = struct{}{}
	return true
}

func (c *Client) joinedDocs() []string {
	c.docsMu.Lock()
	defer c.docsMu.Unlock()
	out := make([]string, 0, len(c.docs))
	for path := range c.docs {
		out = append(out, path)
	}
	return out
}

// readPump pumps frames from the websocket connection to the gateway
// router. It owns the disconnect fast path.
func (c *Client) readPump() {
	defer func() {
		c.gateway.onDisconnect(c)
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.gateway.logger.Warn("Client", "Unexpected close", map[string]interface{}{
					"user_id": c.UserID,
					"error":   err.Error(),
				})
			}
			break
		}
		c.gateway.route(c, data)
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case frame := <-c.presence:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
