package emotion

import "strings"

// Label 表示アバター描画側が受け付ける感情タグ。
type Label string

const (
	Neutral   Label = "neutral"
	Happy     Label = "happy"
	Thinking  Label = "thinking"
	Surprised Label = "surprised"
	Sad       Label = "sad"
	Angry     Label = "angry"
)

// Normalize trims and lower-cases a model supplied emotion tag. Empty tags become neutral;
// unknown tags are passed through so renderers can decide how to display them.
func Normalize(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return string(Neutral)
	}
	return normalized
}
