// Package prompt turns the conversation history into completion prompts
// that fit the configured token budget.
package prompt

import (
	"errors"
	"sort"
	"strings"

	"github.com/vthunder/chatbot/internal/config"
	"github.com/vthunder/chatbot/internal/history"
	"github.com/vthunder/chatbot/internal/tokenizer"
)

// SummaryWindow is the number of recent messages kept verbatim in a chat
// prompt when a summary covers everything older. It is also the history
// length above which the summary stage starts.
const SummaryWindow = 8

// ErrNoSummaryTemplate is returned when a summary prompt is requested but
// no summary format is configured
var ErrNoSummaryTemplate = errors.New("no summary format configured")

// Builder assembles prompts for one configuration snapshot
type Builder struct {
	cfg     *config.Config
	counter tokenizer.Counter
	history *history.History
	budget  int
}

// New creates a builder. The token budget is derived from cfg once here.
func New(cfg *config.Config, counter tokenizer.Counter, h *history.History) *Builder {
	return &Builder{
		cfg:     cfg,
		counter: counter,
		history: h,
		budget:  cfg.PromptBudget(counter),
	}
}

// Budget returns the token budget available to history lines
func (b *Builder) Budget() int {
	return b.budget
}

// ChatPrompt builds the chat prompt. With an empty summary the history is
// trimmed to what fits; with a summary at most SummaryWindow messages are
// used and nothing is evicted, since the summary covers the remainder.
func (b *Builder) ChatPrompt(summary string) string {
	withSummary := summary != ""
	snap := b.history.Snapshot()

	var lines []string
	total := 0
	for _, m := range snap {
		line := b.cfg.Chat.InputPrefix + m.String()
		if m.IsFrom(b.cfg.Name) {
			line = b.cfg.Chat.ResponsePrefix + m.String()
		}

		total += b.counter.Count(line) + 1
		if total >= b.budget {
			break
		}
		lines = append(lines, line)

		if withSummary && len(lines) >= SummaryWindow {
			break
		}
	}

	if !withSummary {
		b.history.EvictOldest(len(snap) - len(lines))
	}

	out := strings.ReplaceAll(b.cfg.Chat.Format, b.cfg.Chat.ChatSub, joinOldestFirst(lines))
	if b.cfg.Chat.SummarySub != "" {
		out = strings.ReplaceAll(out, b.cfg.Chat.SummarySub, summary)
	}
	return out
}

// SummaryPrompt builds the summary prompt over as much history as fits the
// budget, evicting whatever does not.
func (b *Builder) SummaryPrompt() (string, error) {
	if b.cfg.Summary == nil {
		return "", ErrNoSummaryTemplate
	}
	snap := b.history.Snapshot()

	var lines []string
	total := 0
	for _, m := range snap {
		line := m.String()
		total += b.counter.Count(line) + 1
		if total >= b.budget {
			break
		}
		lines = append(lines, line)
	}

	b.history.EvictOldest(len(snap) - len(lines))

	return strings.ReplaceAll(b.cfg.Summary.Format, b.cfg.Summary.ChatSub, joinOldestFirst(lines)), nil
}

// StopNames returns "<speaker>:" for every speaker in the history other than
// the bot, so the backend cannot invent a turn for someone else.
func (b *Builder) StopNames() []string {
	return StopNames(b.history.Speakers(), b.cfg.Name)
}

// StopNames derives the stop list from a set of speaker names
func StopNames(speakers []string, botName string) []string {
	seen := map[string]bool{botName: true}
	var out []string
	for _, s := range speakers {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s+":")
	}
	sort.Strings(out)
	return out
}

func joinOldestFirst(newestFirst []string) string {
	n := len(newestFirst)
	ordered := make([]string, n)
	for i, l := range newestFirst {
		ordered[n-1-i] = l
	}
	return strings.Join(ordered, "\n")
}
