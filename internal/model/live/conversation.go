package live

import "time"

// Conversation persists one comment/reply exchange for history display.
type Conversation struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Username  string    `json:"username"`
	Comment   string    `json:"comment"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}
