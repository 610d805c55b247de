package pty

import (
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	creackpty "github.com/creack/pty"
)

// Session wraps one shell process running inside a PTY. The pty master and
// the child process are created together in newSession and destroyed together
// in Cleanup; neither outlives the other.
type Session struct {
	id        string
	shell     string
	createdAt time.Time

	cmd  *exec.Cmd
	ptmx *os.File

	sink OutputSink

	mu      sync.Mutex
	running bool
	exited  bool
	exitObs []func(sessionID string)

	exitOnce  sync.Once
	cleanOnce sync.Once
	done      chan struct{}
}

// newSession spawns the shell inside a new PTY and starts the reader loop.
// On any failure no fd and no process is left behind.
func newSession(id, shell string, sink OutputSink) (*Session, error) {
	cmd := exec.Command(shell)

	ptmx, err := creackpty.StartWithSize(cmd, &creackpty.Winsize{
		Rows: 24,
		Cols: 80,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:        id,
		shell:     shell,
		createdAt: time.Now(),
		cmd:       cmd,
		ptmx:      ptmx,
		sink:      sink,
		running:   true,
		done:      make(chan struct{}),
	}

	go s.readLoop()

	return s, nil
}

// readLoop drains the pty master until EOF or a read error. The loop blocks
// in Read; Cleanup unblocks it by closing the master fd, so a stop request is
// observed without any polling interval. Invalid UTF-8 byte sequences are
// replaced before delivery.
func (s *Session) readLoop() {
	defer close(s.done)

	buf := make([]byte, readChunkSize)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			data := strings.ToValidUTF8(string(buf[:n]), "�")
			if s.sink != nil {
				s.sink.Publish(s.id, data)
			}
		}
		if err != nil {
			break
		}
	}

	s.markExited()
	go s.Cleanup()
}

// markExited flips running to false and notifies exit observers. Both happen
// exactly once no matter how many paths race into it.
func (s *Session) markExited() {
	s.exitOnce.Do(func() {
		s.mu.Lock()
		s.running = false
		s.exited = true
		obs := make([]func(string), len(s.exitObs))
		copy(obs, s.exitObs)
		s.mu.Unlock()

		for _, fn := range obs {
			fn(s.id)
		}
	})
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Done is closed when the reader loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Shell returns the shell binary this session was started with.
func (s *Session) Shell() string { return s.shell }

// IsRunning reports whether the reader loop is still live. Once false it
// never becomes true again.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Info returns a metadata snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:        s.id,
		Shell:     s.shell,
		Running:   s.running,
		CreatedAt: s.createdAt,
	}
}

// AddExitObserver registers fn to run when the session ends. If the session
// has already ended, fn runs immediately.
func (s *Session) AddExitObserver(fn func(sessionID string)) {
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		fn(s.id)
		return
	}
	s.exitObs = append(s.exitObs, fn)
	s.mu.Unlock()
}

// ExecuteCommand writes the command to the pty, appending a newline if the
// caller did not. Returns false when the session is not running or the write
// fails; it never blocks waiting for the command's output.
func (s *Session) ExecuteCommand(command string) bool {
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	if _, err := s.ptmx.Write([]byte(command)); err != nil {
		slog.Warn("pty write failed", "session_id", s.id, "error", err)
		return false
	}
	return true
}

// SendControl writes a single control byte: C -> 0x03 (interrupt),
// D -> 0x04 (end of transmission), Z -> 0x1A (suspend). Any other symbol is
// rejected without touching the pty.
func (s *Session) SendControl(symbol string) bool {
	var b byte
	switch strings.ToUpper(symbol) {
	case "C":
		b = ctrlInterrupt
	case "D":
		b = ctrlEOT
	case "Z":
		b = ctrlSuspend
	default:
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	if _, err := s.ptmx.Write([]byte{b}); err != nil {
		slog.Warn("pty control write failed", "session_id", s.id, "error", err)
		return false
	}
	return true
}

// Resize sets the pty window size. Zero or negative dimensions are a caller
// error and are rejected rather than clamped.
func (s *Session) Resize(rows, cols int) bool {
	if rows <= 0 || cols <= 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	if err := creackpty.Setsize(s.ptmx, &creackpty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	}); err != nil {
		slog.Warn("pty resize failed", "session_id", s.id, "error", err)
		return false
	}
	return true
}

// Cleanup stops the reader loop, closes the pty master, terminates the child
// (SIGTERM, then SIGKILL after the grace period) and reaps it. Safe to call
// any number of times, from any goroutine.
func (s *Session) Cleanup() {
	s.cleanOnce.Do(func() {
		s.mu.Lock()
		s.running = false
		ptmx := s.ptmx
		s.mu.Unlock()

		if ptmx != nil {
			// Unblocks the reader loop; an "already closed" error is fine.
			_ = ptmx.Close()
		}

		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Signal(syscall.SIGTERM)

			waited := make(chan struct{})
			go func() {
				_ = s.cmd.Wait()
				close(waited)
			}()
			select {
			case <-waited:
			case <-time.After(termGracePeriod):
				slog.Warn("session ignored SIGTERM, killing", "session_id", s.id)
				_ = s.cmd.Process.Kill()
				<-waited
			}
		}

		slog.Info("session cleaned up", "session_id", s.id)
	})

	s.markExited()
}
