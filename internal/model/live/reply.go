package live

import "strings"

// OutputVersion 标识回复输出结构的版本。
const OutputVersion = 1

// Segment is one speakable unit of a reply with its emote tag.
type Segment struct {
	Text    string `json:"text"`
	Emotion string `json:"emotion"`
}

// CommentInput is the pipeline input for one viewer comment.
type CommentInput struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	Comment   string `json:"comment"`
}

// ReplyOutput is the public result of processing one comment.
type ReplyOutput struct {
	Version         int       `json:"version"`
	SessionID       string    `json:"sessionId"`
	Segments        []Segment `json:"segments"`
	Response        string    `json:"response"`
	Emotion         string    `json:"emotion"`
	UsernameReading string    `json:"usernameReading"`
	IsFirstTime     bool      `json:"isFirstTime"`
	ShouldRespond   bool      `json:"shouldRespond"`
}

// JoinSegments concatenates segment texts with single spaces.
func JoinSegments(segments []Segment) string {
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}
	return strings.Join(texts, " ")
}
