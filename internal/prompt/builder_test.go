package prompt

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/vthunder/chatbot/internal/config"
	"github.com/vthunder/chatbot/internal/history"
)

// wordCounter counts whitespace-separated words, which keeps budgets easy to reason about
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

func newTestConfig(maxTokens int) *config.Config {
	return &config.Config{
		Name: "Bot",
		Chat: config.ChatTemplate{
			Format:         "Scene\n{summary}\n{chat}\nBot:",
			ChatSub:        "{chat}",
			SummarySub:     "{summary}",
			InputPrefix:    "> ",
			ResponsePrefix: "",
		},
		MaxTokens: maxTokens,
	}
}

func TestChatPromptOrderingAndPrefixes(t *testing.T) {
	cfg := newTestConfig(1000)
	h := history.New("Bot")
	h.Append(history.Message{Speaker: "Alice", Body: "hi bot"})
	h.Append(history.Message{Speaker: "Bob", Body: "hello"})

	b := New(cfg, wordCounter{}, h)
	got := b.ChatPrompt("")

	want := "Scene\n\nBot:\nHello\n> Alice:\nhi bot\n> Bob:\nhello\nBot:"
	if got != want {
		t.Errorf("unexpected prompt:\n%q\nwant\n%q", got, want)
	}
	if h.Len() != 3 {
		t.Errorf("nothing should be evicted under a large budget, len=%d", h.Len())
	}
}

func TestChatPromptEvictsOverBudget(t *testing.T) {
	// Template "Scene {summary} {chat} Bot:" is 4 words; budget = 20 - 4 = 16.
	cfg := newTestConfig(20)
	h := history.New("Bot")
	for i := 0; i < 10; i++ {
		// "> Alice:\nword word" = 4 words, +1 per line = 5
		h.Append(history.Message{Speaker: "Alice", Body: "word word"})
	}

	b := New(cfg, wordCounter{}, h)
	if b.Budget() != 16 {
		t.Fatalf("expected budget 16, got %d", b.Budget())
	}
	b.ChatPrompt("")

	// 5, 10, 15 fit; 20 >= 16 stops.
	if h.Len() != 3 {
		t.Errorf("expected 3 retained messages, got %d", h.Len())
	}
}

func TestChatPromptWithSummaryCapsWithoutEvicting(t *testing.T) {
	cfg := newTestConfig(10000)
	h := history.New("Bot")
	for i := 0; i < 20; i++ {
		h.Append(history.Message{Speaker: "Alice", Body: fmt.Sprintf("message-%02d", i)})
	}

	b := New(cfg, wordCounter{}, h)
	got := b.ChatPrompt("They talked about numbers.")

	if h.Len() != 21 {
		t.Errorf("summary-augmented build must not evict, len=%d", h.Len())
	}
	if !strings.Contains(got, "They talked about numbers.") {
		t.Error("summary not substituted")
	}
	if strings.Count(got, "> Alice:") != SummaryWindow {
		t.Errorf("expected %d messages in prompt, got %d", SummaryWindow, strings.Count(got, "> Alice:"))
	}
	if !strings.Contains(got, "message-19") || strings.Contains(got, "message-11") {
		t.Errorf("expected the newest window only:\n%s", got)
	}
	if strings.Index(got, "message-12") > strings.Index(got, "message-19") {
		t.Error("messages should be oldest-first")
	}
}

func TestBudgetInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	words := []string{"a", "bb", "ccc", "hello", "there", "friend"}
	speakers := []string{"Alice", "Bob", "Bot", "Carol"}

	for trial := 0; trial < 50; trial++ {
		maxTokens := 5 + rng.Intn(120)
		cfg := newTestConfig(maxTokens)
		h := history.New("Bot")
		for i := 0; i < rng.Intn(40); i++ {
			var body []string
			for j := 0; j <= rng.Intn(6); j++ {
				body = append(body, words[rng.Intn(len(words))])
			}
			h.Append(history.Message{Speaker: speakers[rng.Intn(len(speakers))], Body: strings.Join(body, " ")})
		}

		b := New(cfg, wordCounter{}, h)
		b.ChatPrompt("")

		total := 0
		for _, m := range h.Snapshot() {
			line := cfg.Chat.InputPrefix + m.String()
			if m.Speaker == cfg.Name {
				line = cfg.Chat.ResponsePrefix + m.String()
			}
			total += wordCounter{}.Count(line) + 1
		}
		if h.Len() > 0 && total >= b.Budget() {
			t.Errorf("trial %d: retained cost %d >= budget %d", trial, total, b.Budget())
		}

		before := h.Len()
		b.ChatPrompt("")
		if h.Len() != before {
			t.Errorf("trial %d: second build evicted %d more messages", trial, before-h.Len())
		}
	}
}

func TestSummaryPrompt(t *testing.T) {
	cfg := newTestConfig(1000)
	b := New(cfg, wordCounter{}, history.New("Bot"))
	if _, err := b.SummaryPrompt(); err != ErrNoSummaryTemplate {
		t.Errorf("expected ErrNoSummaryTemplate, got %v", err)
	}

	cfg.Summary = &config.SummaryTemplate{Format: "Summarise:\n<log>\nEnd", ChatSub: "<log>"}
	h := history.New("Bot")
	h.Append(history.Message{Speaker: "Alice", Body: "first"})
	h.Append(history.Message{Speaker: "Bob", Body: "second"})

	b = New(cfg, wordCounter{}, h)
	got, err := b.SummaryPrompt()
	if err != nil {
		t.Fatalf("SummaryPrompt failed: %v", err)
	}
	want := "Summarise:\nBot:\nHello\nAlice:\nfirst\nBob:\nsecond\nEnd"
	if got != want {
		t.Errorf("unexpected summary prompt:\n%q\nwant\n%q", got, want)
	}
}

func TestSummaryPromptEvicts(t *testing.T) {
	cfg := newTestConfig(12)
	// Summary template "S: <log>" is 2 words; budget = 10
	cfg.Summary = &config.SummaryTemplate{Format: "S: <log>", ChatSub: "<log>"}
	h := history.New("Bot")
	for i := 0; i < 6; i++ {
		h.Append(history.Message{Speaker: "Alice", Body: "hey"})
	}

	b := New(cfg, wordCounter{}, h)
	if _, err := b.SummaryPrompt(); err != nil {
		t.Fatal(err)
	}
	// Each "Alice:\nhey" costs 2+1: 3, 6, 9 fit; 12 >= 10 stops.
	if h.Len() != 3 {
		t.Errorf("expected 3 retained, got %d", h.Len())
	}
}

func TestStopNamesExcludesBot(t *testing.T) {
	h := history.New("Bot")
	h.Append(history.Message{Speaker: "Alice", Body: "x"})
	h.Append(history.Message{Speaker: "Bob", Body: "y"})
	h.Append(history.Message{Speaker: "Alice", Body: "z"})

	b := New(newTestConfig(100), wordCounter{}, h)
	names := b.StopNames()

	if strings.Join(names, ",") != "Alice:,Bob:" {
		t.Errorf("unexpected stop names %v", names)
	}
	for _, n := range names {
		if n == "Bot:" {
			t.Error("bot name must never be a stop name")
		}
	}

	if got := StopNames(nil, "Bot"); len(got) != 0 {
		t.Errorf("expected empty stop list, got %v", got)
	}
}
