package hub

// Default replay window: when the buffer grows past the cap it is trimmed
// down to the floor, keeping the newest bytes.
const (
	replayBufferCap   = 10000
	replayBufferFloor = 5000
)

// ReplayBuffer holds the most recent output bytes of one session so that a
// late-joining subscriber sees continuity instead of a gap. Whole writes are
// appended first and trimming happens afterwards, so the window slides but a
// write is never cut off mid-append below the floor.
//
// ReplayBuffer is not safe for concurrent use; the Hub's lock guards it.
type ReplayBuffer struct {
	max   int
	floor int
	data  []byte
}

// NewReplayBuffer creates a buffer that trims to floor bytes once it exceeds
// max bytes. Non-positive or inconsistent arguments fall back to the
// defaults.
func NewReplayBuffer(max, floor int) *ReplayBuffer {
	if max <= 0 {
		max = replayBufferCap
	}
	if floor <= 0 || floor > max {
		floor = max / 2
	}
	return &ReplayBuffer{max: max, floor: floor}
}

// Append adds data to the buffer, then discards the oldest bytes if the cap
// was exceeded.
func (b *ReplayBuffer) Append(data string) {
	b.data = append(b.data, data...)
	if len(b.data) > b.max {
		trimmed := make([]byte, b.floor)
		copy(trimmed, b.data[len(b.data)-b.floor:])
		b.data = trimmed
	}
}

// String returns the buffered bytes as text.
func (b *ReplayBuffer) String() string { return string(b.data) }

// Len returns the number of buffered bytes.
func (b *ReplayBuffer) Len() int { return len(b.data) }
