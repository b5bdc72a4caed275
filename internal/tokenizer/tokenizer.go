// Package tokenizer measures prompt text in model tokens.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/tsawler/prose/v3"
)

// Counter reports how many tokens a piece of text occupies
type Counter interface {
	Count(text string) int
}

const (
	// KindTiktoken selects the BPE tokenizer (cl100k_base)
	KindTiktoken = "tiktoken"
	// KindProse selects the NLP word/punctuation tokenizer
	KindProse = "prose"
	// KindEstimate selects the character heuristic
	KindEstimate = "estimate"

	// DefaultEncoding is the BPE encoding used by KindTiktoken
	DefaultEncoding = "cl100k_base"
)

// New returns the counter registered under kind. An empty kind selects tiktoken.
func New(kind string) (Counter, error) {
	switch strings.ToLower(kind) {
	case "", KindTiktoken:
		return NewTiktoken(DefaultEncoding)
	case KindProse:
		return NewProse(), nil
	case KindEstimate:
		return Estimate{}, nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", kind)
	}
}

var (
	loaderOnce sync.Once

	encMu sync.Mutex

	encodings = map[string]*Tiktoken{}
)

// Tiktoken counts BPE tokens. Encodings are bundled, so nothing is
// downloaded at runtime.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken returns a counter for the named encoding. Encodings are
// built once per process and shared, since reloads ask for them again.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	encMu.Lock()
	defer encMu.Unlock()
	if t, ok := encodings[encoding]; ok {
		return t, nil
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading %s encoding: %w", encoding, err)
	}
	t := &Tiktoken{enc: enc}
	encodings[encoding] = t
	return t, nil
}

// Count implements Counter
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Prose counts tokens with the prose tokenizer. Word-level tokens undercount
// sub-word model vocabularies, so every token that is not pure ASCII letters
// is weighted by its rune length in chunks of four.
type Prose struct{}

// NewProse creates a prose-backed counter
func NewProse() *Prose {
	return &Prose{}
}

// Count implements Counter
func (p *Prose) Count(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return Estimate{}.Count(text)
	}

	n := 0
	for _, tok := range doc.Tokens() {
		n += weight(tok.Text)
	}
	// Newlines are tokens for the model but whitespace for prose
	n += strings.Count(text, "\n")
	return n
}

func weight(tok string) int {
	runes := utf8.RuneCountInString(tok)
	if runes <= 4 || isASCIIWord(tok) {
		return 1 + (runes-1)/8
	}
	return (runes + 3) / 4
}

func isASCIIWord(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// Estimate is the ~4 characters per token heuristic
type Estimate struct{}

// Count implements Counter
func (Estimate) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}
