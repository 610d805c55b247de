package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

var errClientClosed = errors.New("hub: client is closed")

// Client is one websocket connection. It is attached to at most one session
// at a time; a new connect message detaches it from the previous session.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	send chan []byte

	mu        sync.Mutex
	sessionID string
	closed    bool
}

func newClient(conn *websocket.Conn, h *Hub) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		hub:  h,
		send: make(chan []byte, 256),
	}
}

// SendOutput implements Subscriber. It never blocks the publish path: a slow
// consumer loses the chunk, a closed client is reported so the hub drops it.
func (c *Client) SendOutput(data string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errClientClosed
	}
	c.mu.Unlock()

	msg, err := json.Marshal(OutputMessage{
		Type: "output",
		Data: data,
		Ts:   time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	select {
	case c.send <- msg:
	default:
		slog.Warn("client send buffer full, dropping output", "client_id", c.id)
	}
	return nil
}

func (c *Client) enqueue(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(message string) {
	c.enqueue(ErrorMessage{Type: "error", Message: message})
}

func (c *Client) attachedSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.closed = true
		sid := c.sessionID
		c.mu.Unlock()

		if sid != "" {
			c.hub.Unregister(sid, c)
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(32768)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				slog.Debug("client read ended", "client_id", c.id, "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid JSON")
			continue
		}

		switch msg.Type {
		case "connect":
			c.handleConnect(msg)
		case "command":
			c.handleCommand(msg)
		case "control":
			c.handleControl(msg)
		case "resize":
			c.handleResize(msg)
		default:
			c.sendError("unknown message type: " + msg.Type)
		}
	}
}

// handleConnect attaches the client to a session, creating the session if it
// does not exist, then acknowledges and flushes the replay buffer.
func (c *Client) handleConnect(msg ClientMessage) {
	if msg.SessionID == "" {
		c.sendError("session_id required")
		return
	}
	if c.hub.control == nil {
		c.sendError("session control unavailable")
		return
	}

	if !c.hub.control.Exists(msg.SessionID) {
		// A lost creation race is fine: another connect won, the session exists.
		c.hub.control.Create(msg.SessionID, c.hub.defaultShell)
	}

	c.mu.Lock()
	previous := c.sessionID
	c.sessionID = msg.SessionID
	c.mu.Unlock()

	if previous != "" && previous != msg.SessionID {
		c.hub.Unregister(previous, c)
	}

	c.enqueue(ConnectedMessage{Type: "connected", SessionID: msg.SessionID})
	c.hub.Register(msg.SessionID, c)
}

func (c *Client) handleCommand(msg ClientMessage) {
	sid := c.attachedSession()
	if sid == "" {
		c.sendError("no session attached")
		return
	}
	if msg.Command == "" {
		return
	}
	c.hub.control.Execute(sid, msg.Command)
}

func (c *Client) handleControl(msg ClientMessage) {
	sid := c.attachedSession()
	if sid == "" {
		c.sendError("no session attached")
		return
	}
	if msg.Char == "" {
		return
	}
	c.hub.control.SendControl(sid, msg.Char)
}

func (c *Client) handleResize(msg ClientMessage) {
	sid := c.attachedSession()
	if sid == "" {
		c.sendError("no session attached")
		return
	}
	rows, cols := msg.Rows, msg.Cols
	if rows == 0 {
		rows = 24
	}
	if cols == 0 {
		cols = 80
	}
	c.hub.control.Resize(sid, rows, cols)
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case msg := <-c.send:
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}
