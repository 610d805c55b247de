package hub

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"nhooyr.io/websocket"
)

// Subscriber consumes the output stream of one session. An error from
// SendOutput means the subscriber is gone and will be dropped.
type Subscriber interface {
	SendOutput(data string) error
}

// ControlPlane is the slice of the session registry the hub needs to serve
// streaming clients.
type ControlPlane interface {
	Create(id, shell string) bool
	Exists(id string) bool
	Execute(id, command string) bool
	SendControl(id, symbol string) bool
	Resize(id string, rows, cols int) bool
}

// Hub fans session output out to subscribers and keeps a bounded replay
// buffer per session. Its lock is independent of the registry's: the reader
// loops publish here while websocket clients churn on a different call path.
type Hub struct {
	token        string
	defaultShell string
	control      ControlPlane

	mu      sync.Mutex
	streams map[string]*stream
}

type stream struct {
	buf  *ReplayBuffer
	subs map[Subscriber]struct{}
}

// New creates a Hub. token guards the websocket endpoint; defaultShell is
// used when a connect message names a session that does not exist yet.
func New(token, defaultShell string) *Hub {
	return &Hub{
		token:        token,
		defaultShell: defaultShell,
		streams:      make(map[string]*stream),
	}
}

// SetControl wires the session registry in after construction (the registry
// itself is constructed with the hub as its output sink).
func (h *Hub) SetControl(cp ControlPlane) {
	h.control = cp
}

func (h *Hub) streamLocked(sessionID string) *stream {
	st, ok := h.streams[sessionID]
	if !ok {
		st = &stream{
			buf:  NewReplayBuffer(replayBufferCap, replayBufferFloor),
			subs: make(map[Subscriber]struct{}),
		}
		h.streams[sessionID] = st
	}
	return st
}

// Register attaches sub to the session's stream. The replay buffer is
// delivered to sub before it is added to the live set, so a late joiner sees
// the buffered history strictly before any new bytes.
func (h *Hub) Register(sessionID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.streamLocked(sessionID)
	if st.buf.Len() > 0 {
		if err := sub.SendOutput(st.buf.String()); err != nil {
			return
		}
	}
	st.subs[sub] = struct{}{}
}

// Unregister detaches sub from the session's stream.
func (h *Hub) Unregister(sessionID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if st, ok := h.streams[sessionID]; ok {
		delete(st.subs, sub)
	}
}

// Publish appends data to the session's replay buffer and delivers it to
// every current subscriber. A failing subscriber is removed; the rest still
// receive the data. Publish implements pty.OutputSink.
func (h *Hub) Publish(sessionID string, data string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.streamLocked(sessionID)
	st.buf.Append(data)
	for sub := range st.subs {
		if err := sub.SendOutput(data); err != nil {
			delete(st.subs, sub)
		}
	}
}

// DropSession discards the replay buffer and subscriber set of a closed
// session. DropSession implements pty.OutputSink.
func (h *Hub) DropSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.streams, sessionID)
}

// SubscriberCount returns how many subscribers are attached to the session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.streams[sessionID]; ok {
		return len(st.subs)
	}
	return 0
}

// HandleWebSocket upgrades the request and serves the streaming protocol
// until the connection dies.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && r.URL.Query().Get("token") != h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}

	client := newClient(conn, h)
	slog.Info("client connected", "client_id", client.id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.writePump(ctx)
	client.readPump(ctx)

	slog.Info("client disconnected", "client_id", client.id)
}
