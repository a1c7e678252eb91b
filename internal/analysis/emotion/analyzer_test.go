package emotion

import "testing"

func TestNormalizeDefaultsToNeutral(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n"} {
		if got := Normalize(raw); got != "neutral" {
			t.Fatalf("Normalize(%q) = %q, want neutral", raw, got)
		}
	}
}

func TestNormalizeLowercases(t *testing.T) {
	if got := Normalize(" Thinking "); got != "thinking" {
		t.Fatalf("expected thinking, got %s", got)
	}
}

func TestNormalizeKeepsUnknownTags(t *testing.T) {
	if got := Normalize("embarrassed"); got != "embarrassed" {
		t.Fatalf("expected unknown tag to pass through, got %s", got)
	}
}
