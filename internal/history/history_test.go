package history

import (
	"fmt"
	"testing"
)

func TestNewSeedsGreeting(t *testing.T) {
	h := New("Bot")

	if h.Len() != 1 {
		t.Fatalf("expected 1 seeded entry, got %d", h.Len())
	}
	m, ok := h.Newest()
	if !ok {
		t.Fatal("expected newest entry")
	}
	if m.String() != "Bot:\nHello" {
		t.Errorf("unexpected greeting %q", m.String())
	}
	if !h.NewestIsBot() {
		t.Error("seeded greeting should count as self-authored")
	}
}

func TestAppendOrderNewestFirst(t *testing.T) {
	h := New("Bot")
	h.Append(Message{Speaker: "Alice", Body: "one"})
	h.Append(Message{Speaker: "Bob", Body: "two"})

	snap := h.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snap))
	}
	if snap[0].Body != "two" || snap[1].Body != "one" || snap[2].Body != "Hello" {
		t.Errorf("unexpected order: %v", snap)
	}
	if h.NewestIsBot() {
		t.Error("newest entry is from Bob")
	}
}

func TestEvictOldest(t *testing.T) {
	h := New("Bot")
	for i := 0; i < 5; i++ {
		h.Append(Message{Speaker: "Alice", Body: fmt.Sprintf("msg %d", i)})
	}

	removed := h.EvictOldest(4)
	if removed != 4 {
		t.Errorf("expected 4 evicted, got %d", removed)
	}
	snap := h.Snapshot()
	if len(snap) != 2 || snap[0].Body != "msg 4" || snap[1].Body != "msg 3" {
		t.Errorf("unexpected entries after eviction: %v", snap)
	}

	if h.EvictOldest(0) != 0 || h.EvictOldest(-1) != 0 {
		t.Error("non-positive eviction should remove nothing")
	}
	if h.EvictOldest(10) != 2 || h.Len() != 0 {
		t.Error("over-eviction should empty the history")
	}
	if _, ok := h.Newest(); ok {
		t.Error("empty history has no newest entry")
	}
}

func TestResetAfterRename(t *testing.T) {
	h := New("Bot")
	h.Append(Message{Speaker: "Alice", Body: "hi"})
	h.SetBotName("Robo")
	h.Reset()

	snap := h.Snapshot()
	if len(snap) != 1 || snap[0].String() != "Robo:\nHello" {
		t.Errorf("expected reseeded greeting under new name, got %v", snap)
	}
}

func TestSpeakersDistinct(t *testing.T) {
	h := New("Bot")
	h.Append(Message{Speaker: "Alice", Body: "a"})
	h.Append(Message{Speaker: "Bob", Body: "b"})
	h.Append(Message{Speaker: "Alice", Body: "c"})

	names := h.Speakers()
	if len(names) != 3 {
		t.Fatalf("expected 3 distinct speakers, got %v", names)
	}
	if names[0] != "Alice" || names[1] != "Bob" || names[2] != "Bot" {
		t.Errorf("unexpected speaker order: %v", names)
	}
}

func TestMessageString(t *testing.T) {
	m := Message{Speaker: "Alice", Body: "hello: world"}
	if m.String() != "Alice:\nhello: world" {
		t.Errorf("unexpected rendering: %q", m.String())
	}
	if !m.IsFrom("Alice") || m.IsFrom("alice") {
		t.Error("IsFrom should match the exact speaker")
	}
}
