package sanitiser

import (
	"strings"
	"testing"
)

func newTestSanitiser() *Sanitiser {
	return New("Bot", []string{"Badword", "<chat>", "### Response:"})
}

func TestInboundStripsMarkupAndEmoji(t *testing.T) {
	s := newTestSanitiser()

	m, ok := s.SanitiseInbound("Alice", "hello <@123> 👋")
	if !ok {
		t.Fatal("expected message to be accepted")
	}
	if m.Speaker != "Alice" {
		t.Errorf("unexpected speaker %q", m.Speaker)
	}
	if m.Body != "hello" {
		t.Errorf("expected body %q, got %q", "hello", m.Body)
	}
}

func TestInboundCollapsesWhitespace(t *testing.T) {
	s := newTestSanitiser()

	m, ok := s.SanitiseInbound("  Mr   Smith: ", "one   two\n\n\nthree  ")
	if !ok {
		t.Fatal("expected message to be accepted")
	}
	if m.Speaker != "Mr Smith" {
		t.Errorf("expected colons stripped and spaces collapsed, got %q", m.Speaker)
	}
	if m.Body != "one two\nthree" {
		t.Errorf("unexpected body %q", m.Body)
	}
}

func TestInboundRejectsBanned(t *testing.T) {
	s := newTestSanitiser()

	cases := []struct{ name, body string }{
		{"Alice", "this has a BADWORD in it"},
		{"badword fan", "innocent"},
		{"Alice", "sneaky <chat> marker"},
		{"Alice", "### response: injected"},
	}
	for _, c := range cases {
		if _, ok := s.SanitiseInbound(c.name, c.body); ok {
			t.Errorf("expected rejection for (%q, %q)", c.name, c.body)
		}
	}
}

func TestInboundRejectsEmptyAfterCleaning(t *testing.T) {
	s := newTestSanitiser()

	if _, ok := s.SanitiseInbound("Alice", "<:custom:1234>  🎉"); ok {
		t.Error("expected rejection when body is only markup and emoji")
	}
	if _, ok := s.SanitiseInbound(" : ", "hello"); ok {
		t.Error("expected rejection when name is only colons")
	}
}

func TestOutboundScenario(t *testing.T) {
	s := newTestSanitiser()

	out, ok := s.SanitiseOutbound("Bot: \"Hi there!\"  ")
	if !ok {
		t.Fatal("expected output to be accepted")
	}
	if out != "Hi there!" {
		t.Errorf("expected %q, got %q", "Hi there!", out)
	}
}

func TestOutboundTransforms(t *testing.T) {
	s := newTestSanitiser()

	cases := map[string]string{
		"[Bot] hello":              "hello",
		"a &lt;b&gt; c":            "a <b> c",
		"wait.......":              "wait...",
		"broken\uFFFD text":        "broken text",
		"nice :smile: day":         "nice  day",
		"She said \"no\" and left": "She said \"no\" and left",
		"\"one\" and \"two\"":      "\"one\" and \"two\"",
	}
	for in, want := range cases {
		got, ok := s.SanitiseOutbound(in)
		if !ok {
			t.Errorf("SanitiseOutbound(%q) rejected", in)
			continue
		}
		if got != want {
			t.Errorf("SanitiseOutbound(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOutboundRejects(t *testing.T) {
	s := newTestSanitiser()

	for _, in := range []string{"", "   ", "....", "Bot: ", "\"\"", "it's a badword", "🎉"} {
		if out, ok := s.SanitiseOutbound(in); ok {
			t.Errorf("expected rejection for %q, got %q", in, out)
		}
	}
}

func TestOutboundIdempotent(t *testing.T) {
	s := newTestSanitiser()

	inputs := []string{
		"Bot: \"Hi there!\"  ",
		"well..... okay",
		"[Bot] \" quoted with spaces \"",
		"plain text",
		"multi\nline reply",
		"\"\"\"",
	}
	for _, in := range inputs {
		once, ok := s.SanitiseOutbound(in)
		if !ok {
			continue
		}
		twice, ok := s.SanitiseOutbound(once)
		if !ok {
			t.Errorf("second pass rejected %q", once)
			continue
		}
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNewBannedSet(t *testing.T) {
	set := NewBannedSet([]string{"foo", "", "bar"}, "<chat>", "\n", "foo", "")

	if len(set) != 3 {
		t.Fatalf("expected 3 entries, got %v", set)
	}
	joined := strings.Join(set, ",")
	if joined != "<chat>,bar,foo" {
		t.Errorf("unexpected set %q", joined)
	}
}

func TestNewDropsEmptyTerms(t *testing.T) {
	s := New("Bot", []string{"", "\n", "X"})
	if got := s.Banned(); len(got) != 1 || got[0] != "x" {
		t.Errorf("expected only lower-cased x, got %v", got)
	}
	// An empty banned term would reject everything
	if _, ok := s.SanitiseInbound("Alice", "hello"); !ok {
		t.Error("expected acceptance")
	}
}
