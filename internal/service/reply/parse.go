package reply

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/zhouzirui/aituber/backend/internal/analysis/emotion"
	"github.com/zhouzirui/aituber/backend/internal/model/live"
)

// Shape names the output format a reply was recognised as.
type Shape string

const (
	// ShapeSegments is {"segments": [{"text", "emotion"}]}.
	ShapeSegments Shape = "segments"
	// ShapeLegacy is the single reply form {"response", "emotion"}.
	ShapeLegacy Shape = "legacy"
	// ShapeEmpty is a JSON object carrying neither segments nor response.
	ShapeEmpty Shape = "empty"
	// ShapePlain is anything that is not a JSON object; the whole text becomes one segment.
	ShapePlain Shape = "plain"
)

// Placeholder is used when a reply has no speakable segment left.
var Placeholder = live.Segment{Text: "...", Emotion: string(emotion.Neutral)}

var fencePattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// Parsed is the result of Parse.
type Parsed struct {
	Segments []live.Segment
	Shape    Shape
	// Repaired is set when the JSON only decoded after jsonrepair.
	Repaired bool
}

// Parse turns raw generator output into a non-empty segment list. It never fails.
func Parse(raw string) Parsed {
	text := strings.TrimSpace(raw)

	body := unwrapFence(text)
	obj, repaired, ok := decodeObject(body)
	if !ok {
		plain := text
		var quoted string
		if strings.HasPrefix(body, `"`) && json.Unmarshal([]byte(body), &quoted) == nil {
			plain = quoted
		}
		return finish(Parsed{
			Segments: []live.Segment{{Text: plain, Emotion: string(emotion.Neutral)}},
			Shape:    ShapePlain,
		})
	}

	if segments, ok := segmentsShape(obj); ok {
		return finish(Parsed{Segments: segments, Shape: ShapeSegments, Repaired: repaired})
	}
	if segment, ok := legacyShape(obj); ok {
		return finish(Parsed{Segments: []live.Segment{segment}, Shape: ShapeLegacy, Repaired: repaired})
	}
	return finish(Parsed{Shape: ShapeEmpty, Repaired: repaired})
}

// unwrapFence returns the body of the first ``` or ```json block, or text unchanged.
func unwrapFence(text string) string {
	match := fencePattern.FindStringSubmatch(text)
	if match == nil {
		return text
	}
	return strings.TrimSpace(match[1])
}

func decodeObject(body string) (map[string]json.RawMessage, bool, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err == nil {
		return obj, false, obj != nil
	}

	if !strings.HasPrefix(body, "{") {
		return nil, false, false
	}
	fixed, err := jsonrepair.JSONRepair(body)
	if err != nil {
		return nil, false, false
	}
	obj = nil
	if err := json.Unmarshal([]byte(fixed), &obj); err != nil {
		return nil, false, false
	}
	return obj, true, obj != nil
}

func segmentsShape(obj map[string]json.RawMessage) ([]live.Segment, bool) {
	raw, ok := obj["segments"]
	if !ok {
		return nil, false
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil, false
	}

	segments := make([]live.Segment, 0, len(entries))
	for _, entry := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
			continue
		}
		segments = append(segments, live.Segment{
			Text:    stringField(fields, "text"),
			Emotion: emotion.Normalize(stringField(fields, "emotion")),
		})
	}
	return segments, true
}

// stringField returns fields[key] as a string, or "" when it is missing or not a string.
func stringField(fields map[string]json.RawMessage, key string) string {
	var value string
	if raw, ok := fields[key]; ok {
		_ = json.Unmarshal(raw, &value)
	}
	return value
}

func legacyShape(obj map[string]json.RawMessage) (live.Segment, bool) {
	raw, ok := obj["response"]
	if !ok {
		return live.Segment{}, false
	}
	var response string
	if err := json.Unmarshal(raw, &response); err != nil || response == "" {
		return live.Segment{}, false
	}

	return live.Segment{Text: response, Emotion: emotion.Normalize(stringField(obj, "emotion"))}, true
}

// finish drops blank segments and guarantees at least one.
func finish(p Parsed) Parsed {
	kept := make([]live.Segment, 0, len(p.Segments))
	for _, seg := range p.Segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		kept = append(kept, seg)
	}
	if len(kept) == 0 {
		kept = append(kept, Placeholder)
	}
	p.Segments = kept
	return p
}
