package live

import "time"

// DefaultStreamTitle 是自动创建会话时使用的标题。
const DefaultStreamTitle = "配信"

// Session captures one logical stream run.
type Session struct {
	ID          string     `json:"id"`
	StreamTitle string     `json:"streamTitle"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
}

// Ended reports whether the stream has been closed.
func (s Session) Ended() bool {
	return s.EndedAt != nil
}

// Viewer is a commenter identity within a session.
type Viewer struct {
	ID              int64  `json:"id"`
	SessionID       string `json:"sessionId"`
	Username        string `json:"username"`
	UsernameReading string `json:"usernameReading"`
}
