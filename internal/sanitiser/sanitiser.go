// Package sanitiser cleans chat text on its way into the transcript and
// completion output on its way out, rejecting anything that touches the
// banned-term policy.
package sanitiser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/forPelevin/gomoji"
	"github.com/kyokomi/emoji/v2"

	"github.com/vthunder/chatbot/internal/history"
)

var (
	markupRegex    = regexp.MustCompile(`<.*?>`)
	spaceRegex     = regexp.MustCompile(` +`)
	newlineRegex   = regexp.MustCompile(`\n+`)
	ellipsisRegex  = regexp.MustCompile(`\.\.\.\.+`)
	shortcodeRegex = regexp.MustCompile(`:[a-zA-Z0-9_+\-]+:`)

	htmlEntities = strings.NewReplacer("&lt;", "<", "&gt;", ">")
)

// Sanitiser applies the inbound and outbound text policy for one bot identity
type Sanitiser struct {
	botName string
	banned  []string // lower-cased, sorted
}

// New creates a sanitiser. Banned terms are matched case-insensitively.
func New(botName string, banned []string) *Sanitiser {
	lowered := make([]string, 0, len(banned))
	for _, b := range banned {
		if b == "" || b == "\n" {
			continue
		}
		lowered = append(lowered, strings.ToLower(b))
	}
	sort.Strings(lowered)
	return &Sanitiser{botName: botName, banned: lowered}
}

// BotName returns the identity this sanitiser strips from outbound text
func (s *Sanitiser) BotName() string {
	return s.botName
}

// Banned returns the effective (lower-cased) banned list
func (s *Sanitiser) Banned() []string {
	return append([]string(nil), s.banned...)
}

// containsBanned reports whether any banned term occurs in text (case-insensitive)
func (s *Sanitiser) containsBanned(text string) bool {
	lower := strings.ToLower(text)
	for _, b := range s.banned {
		if strings.Contains(lower, b) {
			return true
		}
	}
	return false
}

// SanitiseInbound validates and normalises a chat message. The second return
// is false when the message is rejected and must be dropped.
func (s *Sanitiser) SanitiseInbound(speaker, body string) (history.Message, bool) {
	if s.containsBanned(speaker) || s.containsBanned(body) {
		return history.Message{}, false
	}

	speaker = stripEmoji(speaker)
	speaker = strings.ReplaceAll(speaker, ":", " ")
	speaker = spaceRegex.ReplaceAllString(speaker, " ")
	speaker = strings.TrimSpace(speaker)

	body = markupRegex.ReplaceAllString(body, "")
	body = stripEmoji(body)
	body = spaceRegex.ReplaceAllString(body, " ")
	body = newlineRegex.ReplaceAllString(body, "\n")
	body = strings.TrimSpace(body)

	if speaker == "" || body == "" {
		return history.Message{}, false
	}
	return history.Message{Speaker: speaker, Body: body}, true
}

// SanitiseOutbound cleans a raw completion. The second return is false when
// the completion is unusable and the request should be retried.
func (s *Sanitiser) SanitiseOutbound(text string) (string, bool) {
	if s.containsBanned(text) {
		return "", false
	}

	text = strings.ReplaceAll(text, "\uFFFD", "")
	text = htmlEntities.Replace(text)
	text = strings.ReplaceAll(text, "["+s.botName+"]", "")
	text = strings.ReplaceAll(text, s.botName+": ", "")
	text = ellipsisRegex.ReplaceAllString(text, "...")
	text = strings.TrimSpace(text)

	text = stripEmoji(emojize(text))
	text = strings.TrimSpace(text)

	if strings.Count(text, `"`) == 2 && len(text) >= 2 &&
		strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		text = strings.Trim(text, `" `)
	}

	if text == "" || strings.Trim(text, ".") == "" {
		return "", false
	}
	return text, true
}

// NewBannedSet builds the effective banned list: the configured terms plus
// any template markers and prefixes, without the empty string or a bare
// newline. Duplicates are removed.
func NewBannedSet(configured []string, extras ...string) []string {
	seen := make(map[string]bool, len(configured)+len(extras))
	var out []string
	add := func(s string) {
		if s == "" || s == "\n" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, s := range configured {
		add(s)
	}
	for _, s := range extras {
		add(s)
	}
	sort.Strings(out)
	return out
}

func stripEmoji(s string) string {
	return gomoji.RemoveEmojis(s)
}

// emojize turns known :shortcode: sequences into their pictographs so the
// following strip removes them too. Unknown shortcodes are left alone.
func emojize(s string) string {
	if !strings.Contains(s, ":") {
		return s
	}
	codes := emoji.CodeMap()
	return shortcodeRegex.ReplaceAllStringFunc(s, func(code string) string {
		if e, ok := codes[strings.ToLower(code)]; ok {
			return e
		}
		return code
	})
}
