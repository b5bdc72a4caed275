// Package config loads the bot configuration and its side files (context,
// persona, chat and summary formats). Files may be JSON, JSON with comments,
// or YAML, chosen by extension.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/vthunder/chatbot/internal/sanitiser"
)

const (
	defaultTriggerMin = 3 * time.Second
	defaultTriggerMax = 6 * time.Second
	defaultDeliver    = 1 * time.Second
)

// Load reads the configuration at path and every side file it references,
// performs the load-time template substitutions and builds the banned set.
// The result is validated; a partially loaded Config is never returned.
func Load(path string) (*Config, error) {
	var fc fileConfig
	if err := decodeFile(path, &fc); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	cfg := &Config{
		Path:          path,
		ChatParams:    fc.ChatParams,
		SummaryParams: fc.SummaryParams,
		MaxTokens:     fc.MaxTokens,
		Admins:        idStrings(fc.Admins),
		ChannelID:     string(fc.ChannelID),
		BotToken:      fc.BotToken,
		Tokenizer:     fc.Tokenizer,
		JournalPath:   fc.JournalPath,
		TriggerMin:    seconds(fc.TriggerMinSeconds, defaultTriggerMin),
		TriggerMax:    seconds(fc.TriggerMaxSeconds, defaultTriggerMax),
	}
	cfg.DeliverInterval = seconds(fc.DeliverSeconds, defaultDeliver)
	if cfg.ChatParams == nil {
		cfg.ChatParams = Params{}
	}
	if cfg.SummaryParams == nil {
		cfg.SummaryParams = Params{}
	}

	var ctxFile contextFile
	if err := decodeFile(resolve(dir, fc.Context), &ctxFile); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	cfg.Context = ctxFile.Context

	var persona personaFile
	if err := decodeFile(resolve(dir, fc.Persona), &persona); err != nil {
		return nil, fmt.Errorf("persona: %w", err)
	}
	cfg.Name = persona.Name
	cfg.Persona = persona.Persona

	var chat chatFormatFile
	if err := decodeFile(resolve(dir, fc.ChatFormat), &chat); err != nil {
		return nil, fmt.Errorf("chat format: %w", err)
	}
	cfg.Chat = ChatTemplate{
		Format: substitute(chat.Format,
			chat.ContextSub, cfg.Context,
			chat.PersonaSub, cfg.Persona,
			chat.CharSub, cfg.Name),
		ChatSub:        chat.ChatSub,
		SummarySub:     chat.SummarySub,
		InputPrefix:    chat.InputPrefix,
		ResponsePrefix: chat.ResponsePrefix,
	}

	markers := []string{chat.ChatSub, chat.SummarySub, chat.InputPrefix, chat.ResponsePrefix}

	if fc.SummaryFormat != "" {
		var summary summaryFormatFile
		if err := decodeFile(resolve(dir, fc.SummaryFormat), &summary); err != nil {
			return nil, fmt.Errorf("summary format: %w", err)
		}
		cfg.Summary = &SummaryTemplate{
			Format: substitute(summary.Format,
				summary.PersonaSub, cfg.Persona,
				summary.CharSub, cfg.Name),
			ChatSub: summary.ChatSub,
		}
		markers = append(markers, summary.ChatSub)
	}

	cfg.Banned = sanitiser.NewBannedSet(fc.BannedSubstrings, markers...)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides the transport settings with DISCORD_TOKEN and
// DISCORD_CHANNEL_ID when they are set.
func (c *Config) ApplyEnv() {
	if tok := os.Getenv("DISCORD_TOKEN"); tok != "" {
		c.BotToken = tok
	}
	if ch := os.Getenv("DISCORD_CHANNEL_ID"); ch != "" {
		c.ChannelID = ch
	}
}

// decodeFile reads path and decodes it by extension: .yaml/.yml as YAML,
// anything else as JSON with optional comments and trailing commas.
func decodeFile(path string, v any) error {
	if path == "" {
		return fmt.Errorf("missing file path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), v); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return nil
}

// resolve finds a side file. Paths are tried as given first (relative to the
// working directory), then relative to the main config file's directory.
func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return filepath.Join(dir, p)
}

// substitute performs marker/value replacement pairs in order. Empty markers
// are skipped so an absent marker never matches everywhere.
func substitute(format string, pairs ...string) string {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i] == "" {
			continue
		}
		format = strings.ReplaceAll(format, pairs[i], pairs[i+1])
	}
	return format
}

func seconds(v float64, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v * float64(time.Second))
}
