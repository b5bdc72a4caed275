package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vthunder/chatbot/internal/tokenizer"
)

// Validate checks a loaded Config for the fields prompt building relies on
func Validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.Name) == "" {
		errs = append(errs, errors.New("config: persona name is required"))
	}
	if cfg.Chat.Format == "" {
		errs = append(errs, errors.New("config: chat format is empty"))
	}
	if cfg.Chat.ChatSub == "" {
		errs = append(errs, errors.New("config: chat format needs a chat_sub marker"))
	} else if !strings.Contains(cfg.Chat.Format, cfg.Chat.ChatSub) {
		errs = append(errs, fmt.Errorf("config: chat format does not contain chat_sub marker %q", cfg.Chat.ChatSub))
	}
	if cfg.Summary != nil {
		if cfg.Summary.ChatSub == "" {
			errs = append(errs, errors.New("config: summary format needs a chat_sub marker"))
		} else if !strings.Contains(cfg.Summary.Format, cfg.Summary.ChatSub) {
			errs = append(errs, fmt.Errorf("config: summary format does not contain chat_sub marker %q", cfg.Summary.ChatSub))
		}
	}
	if cfg.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("config: max_tokens must be positive, got %d", cfg.MaxTokens))
	}
	if cfg.TriggerMin <= 0 || cfg.TriggerMax < cfg.TriggerMin {
		errs = append(errs, fmt.Errorf("config: trigger interval [%v, %v] is invalid", cfg.TriggerMin, cfg.TriggerMax))
	}
	if cfg.DeliverInterval <= 0 {
		errs = append(errs, errors.New("config: deliver interval must be positive"))
	}
	if _, err := tokenizer.New(cfg.Tokenizer); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	return errors.Join(errs...)
}

// PromptBudget returns how many tokens the chat history may occupy: the
// configured maximum minus the cost of the template itself. When a summary
// format exists its size is used, since the summary prompt is the one that
// must carry the full history window.
func (c *Config) PromptBudget(counter tokenizer.Counter) int {
	format := c.Chat.Format
	if c.Summary != nil {
		format = c.Summary.Format
	}
	return c.MaxTokens - counter.Count(format)
}
