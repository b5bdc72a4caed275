package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the main bot configuration file. Side files (context,
// persona, formats) are referenced by path.
type fileConfig struct {
	Context          string   `json:"context" yaml:"context"`
	Persona          string   `json:"persona" yaml:"persona"`
	ChatFormat       string   `json:"chat_format" yaml:"chat_format"`
	SummaryFormat    string   `json:"summary_format,omitempty" yaml:"summary_format,omitempty"`
	ChatParams       Params   `json:"chat_params" yaml:"chat_params"`
	SummaryParams    Params   `json:"summary_params" yaml:"summary_params"`
	MaxTokens        int      `json:"max_tokens" yaml:"max_tokens"`
	BannedSubstrings []string `json:"banned_substrings" yaml:"banned_substrings"`
	Admins           []ID     `json:"admins" yaml:"admins"`
	ChannelID        ID       `json:"channel_id" yaml:"channel_id"`
	BotToken         string   `json:"bot_token" yaml:"bot_token"`

	Tokenizer         string  `json:"tokenizer,omitempty" yaml:"tokenizer,omitempty"`
	JournalPath       string  `json:"journal_path,omitempty" yaml:"journal_path,omitempty"`
	TriggerMinSeconds float64 `json:"trigger_min_seconds,omitempty" yaml:"trigger_min_seconds,omitempty"`
	TriggerMaxSeconds float64 `json:"trigger_max_seconds,omitempty" yaml:"trigger_max_seconds,omitempty"`
	DeliverSeconds    float64 `json:"deliver_seconds,omitempty" yaml:"deliver_seconds,omitempty"`
}

type contextFile struct {
	Context string `json:"context" yaml:"context"`
}

type personaFile struct {
	Name    string `json:"name" yaml:"name"`
	Persona string `json:"persona" yaml:"persona"`
}

type chatFormatFile struct {
	Format         string `json:"format" yaml:"format"`
	ContextSub     string `json:"context_sub" yaml:"context_sub"`
	PersonaSub     string `json:"persona_sub" yaml:"persona_sub"`
	CharSub        string `json:"char_sub" yaml:"char_sub"`
	ChatSub        string `json:"chat_sub" yaml:"chat_sub"`
	SummarySub     string `json:"summary_sub" yaml:"summary_sub"`
	InputPrefix    string `json:"input_prefix" yaml:"input_prefix"`
	ResponsePrefix string `json:"response_prefix" yaml:"response_prefix"`
}

type summaryFormatFile struct {
	Format     string `json:"format" yaml:"format"`
	PersonaSub string `json:"persona_sub" yaml:"persona_sub"`
	CharSub    string `json:"char_sub" yaml:"char_sub"`
	ChatSub    string `json:"chat_sub" yaml:"chat_sub"`
}

// ChatTemplate is the chat prompt with persona, context and name already
// substituted; only the history and summary markers remain.
type ChatTemplate struct {
	Format         string
	ChatSub        string
	SummarySub     string
	InputPrefix    string
	ResponsePrefix string
}

// SummaryTemplate is the summary prompt with persona and name substituted
type SummaryTemplate struct {
	Format  string
	ChatSub string
}

// Config is a fully loaded, immutable bot configuration. A reload builds a
// new Config and swaps it in whole.
type Config struct {
	Path string

	Name    string
	Persona string
	Context string

	Chat    ChatTemplate
	Summary *SummaryTemplate // nil when no summary format is configured

	ChatParams    Params
	SummaryParams Params

	// MaxTokens is the backend context size as configured; see PromptBudget
	MaxTokens int
	// Banned is the full banned set: configured terms, template markers and prefixes
	Banned []string

	Admins    []string
	ChannelID string
	BotToken  string

	Tokenizer       string
	JournalPath     string
	TriggerMin      time.Duration
	TriggerMax      time.Duration
	DeliverInterval time.Duration
}

// HasSummary reports whether the summary stage is configured
func (c *Config) HasSummary() bool {
	return c.Summary != nil
}

// IsAdmin reports whether the user ID is allowed to run commands
func (c *Config) IsAdmin(userID string) bool {
	for _, a := range c.Admins {
		if a == userID {
			return true
		}
	}
	return false
}

// ID is a platform identifier that may be written as a number or a string.
// Discord snowflakes overflow float64, so numbers are kept as their literal text.
type ID string

// UnmarshalJSON accepts both 123 and "123"
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or integer: %s", data)
	}
	if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
		return fmt.Errorf("id must be a string or integer: %s", data)
	}
	*id = ID(n.String())
	return nil
}

// UnmarshalYAML accepts both 123 and "123"
func (id *ID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: id must be a scalar", node.Line)
	}
	*id = ID(node.Value)
	return nil
}

func idStrings(ids []ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
