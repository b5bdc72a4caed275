package logging

import "testing"

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
	if got := Truncate("line one\nline two", 8); got != "line one..." {
		t.Errorf("expected newline flattened and cut, got %q", got)
	}
	// Multi-byte runes must not be split
	if got := Truncate("héllo wörld", 5); got != "héllo..." {
		t.Errorf("expected rune-safe cut, got %q", got)
	}
}

func TestSetDebug(t *testing.T) {
	prev := DebugEnabled()
	defer SetDebug(prev)

	SetDebug(true)
	if !DebugEnabled() {
		t.Error("expected debug enabled")
	}
	SetDebug(false)
	if DebugEnabled() {
		t.Error("expected debug disabled")
	}
}
