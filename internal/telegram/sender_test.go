package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageShort(t *testing.T) {
	parts := SplitMessage("привет", 4096)
	if len(parts) != 1 || parts[0] != "привет" {
		t.Fatalf("unexpected parts: %v", parts)
	}
}

func TestSplitMessagePrefersNewline(t *testing.T) {
	text := strings.Repeat("а", 30) + "\n" + strings.Repeat("б", 30)
	parts := SplitMessage(text, 40)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %v", len(parts), parts)
	}
	if parts[0] != strings.Repeat("а", 30) {
		t.Errorf("first part should end at the newline, got %q", parts[0])
	}
	if parts[1] != strings.Repeat("б", 30) {
		t.Errorf("second part mismatch: %q", parts[1])
	}
}

func TestSplitMessageHardCut(t *testing.T) {
	text := strings.Repeat("я", 100)
	parts := SplitMessage(text, 40)
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	for i, p := range parts {
		if n := len([]rune(p)); n > 40 {
			t.Errorf("part %d has %d runes", i, n)
		}
	}
	if joined := strings.Join(parts, ""); joined != text {
		t.Error("hard cut lost content")
	}
}
