package hub

// ClientMessage is any message a streaming client sends. Type selects which
// of the remaining fields are meaningful.
type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Command   string `json:"command,omitempty"`
	Char      string `json:"char,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Cols      int    `json:"cols,omitempty"`
}

// OutputMessage carries session output to a client, in arrival order.
type OutputMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
	Ts   int64  `json:"ts"`
}

// ConnectedMessage acknowledges a connect request.
type ConnectedMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// ErrorMessage reports a protocol-level problem; the connection stays open.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
