package history

import "sync"

// History is the bounded transcript of one conversation.
//
// Entries are exposed newest-first. Internally they are stored oldest-first
// so appends are amortised O(1) and eviction trims the head of the slice.
// The lock only protects the slice itself; callers that need a consistent
// view across several calls (prompt building) accept that a concurrent
// append may land between them.
type History struct {
	mu      sync.RWMutex
	entries []Message // oldest first
	botName string
}

// New creates a history seeded with the bot's greeting
func New(botName string) *History {
	h := &History{botName: botName}
	h.Reset()
	return h
}

// BotName returns the speaker name used for self-authored entries
func (h *History) BotName() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.botName
}

// SetBotName changes the self speaker name. Existing entries are untouched;
// the next Reset seeds the greeting under the new name.
func (h *History) SetBotName(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.botName = name
}

// Reset clears the transcript back to the single seeded greeting
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = []Message{{Speaker: h.botName, Body: Greeting}}
}

// Append adds a message as the newest entry
func (h *History) Append(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, m)
}

// Len returns the number of entries
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Newest returns the most recent entry
func (h *History) Newest() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return Message{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// NewestIsBot reports whether the most recent entry was authored by the bot
func (h *History) NewestIsBot() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return false
	}
	return h.entries[len(h.entries)-1].IsFrom(h.botName)
}

// Snapshot returns a newest-first copy of the transcript
func (h *History) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.entries))
	for i, m := range h.entries {
		out[len(h.entries)-1-i] = m
	}
	return out
}

// EvictOldest removes up to n entries from the oldest end and returns how
// many were removed. Entries appended concurrently are never the ones evicted.
func (h *History) EvictOldest(n int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 {
		return 0
	}
	if n > len(h.entries) {
		n = len(h.entries)
	}
	remaining := make([]Message, len(h.entries)-n)
	copy(remaining, h.entries[n:])
	h.entries = remaining
	return n
}

// Speakers returns the distinct speaker names present, in first-seen
// (newest-first) order
func (h *History) Speakers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]bool, len(h.entries))
	var names []string
	for i := len(h.entries) - 1; i >= 0; i-- {
		s := h.entries[i].Speaker
		if seen[s] {
			continue
		}
		seen[s] = true
		names = append(names, s)
	}
	return names
}
