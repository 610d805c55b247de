package pty

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry is the process-wide table of sessions keyed by id. It is
// constructed explicitly and handed to every collaborator that needs it;
// there is no package-level instance. The lock guards the table only, never
// pty I/O.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	sink     OutputSink
}

// NewRegistry creates an empty Registry whose sessions publish output to sink.
func NewRegistry(sink OutputSink) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		sink:     sink,
	}
}

// Create spawns a new session under the given id. It returns false when the
// id is empty, already taken, or the shell fails to start; a session that
// failed to start is never registered.
func (r *Registry) Create(id, shell string) bool {
	if id == "" {
		return false
	}
	if shell == "" {
		shell = DefaultShell
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return false
	}

	sess, err := newSession(id, shell, r.sink)
	if err != nil {
		slog.Error("failed to start session", "session_id", id, "shell", shell, "error", err)
		return false
	}
	sess.AddExitObserver(func(sid string) {
		slog.Info("session ended", "session_id", sid)
	})

	r.sessions[id] = sess
	slog.Info("session started", "session_id", id, "shell", shell)
	return true
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Exists reports whether a session with the given id is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Execute writes a command to the named session.
func (r *Registry) Execute(id, command string) bool {
	sess, ok := r.Get(id)
	if !ok {
		return false
	}
	return sess.ExecuteCommand(command)
}

// SendControl sends a control character to the named session.
func (r *Registry) SendControl(id, symbol string) bool {
	sess, ok := r.Get(id)
	if !ok {
		return false
	}
	return sess.SendControl(symbol)
}

// Resize changes the terminal dimensions of the named session.
func (r *Registry) Resize(id string, rows, cols int) bool {
	sess, ok := r.Get(id)
	if !ok {
		return false
	}
	return sess.Resize(rows, cols)
}

// Close removes the session from the table and cleans it up. The entry is
// removed under the lock, so a concurrent Get either resolves a usable
// session or finds the id absent. A second Close of the same id returns
// false.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	sess.Cleanup()
	if r.sink != nil {
		r.sink.DropSession(id)
	}
	return true
}

// List returns the registered session ids in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// CleanupAll closes every session and empties the table. Intended for
// process shutdown; operations racing against it fail with false rather
// than crash.
func (r *Registry) CleanupAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for id, sess := range sessions {
		sess.Cleanup()
		if r.sink != nil {
			r.sink.DropSession(id)
		}
	}
}
