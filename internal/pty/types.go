package pty

import "time"

// Control bytes understood by Session.SendControl.
const (
	ctrlInterrupt = 0x03 // Ctrl+C (ETX)
	ctrlEOT       = 0x04 // Ctrl+D (EOT)
	ctrlSuspend   = 0x1a // Ctrl+Z (SUB)
)

const (
	// readChunkSize bounds a single read from the pty master.
	readChunkSize = 1024

	// termGracePeriod is how long Cleanup waits for the child to exit
	// after SIGTERM before escalating to SIGKILL.
	termGracePeriod = 5 * time.Second
)

// DefaultShell is used when a caller does not name a shell binary.
const DefaultShell = "/bin/bash"

// OutputSink receives everything a session's reader loop produces.
// The broadcast hub implements it.
type OutputSink interface {
	// Publish delivers decoded output for the session to its subscribers.
	Publish(sessionID string, data string)
	// DropSession discards any per-session state held by the sink.
	DropSession(sessionID string)
}

// SessionInfo is a read-only snapshot of session metadata returned by Registry.List.
type SessionInfo struct {
	ID        string    `json:"session_id"`
	Shell     string    `json:"shell"`
	Running   bool      `json:"is_running"`
	CreatedAt time.Time `json:"created_at"`
}
