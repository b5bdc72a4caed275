package effectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/vthunder/chatbot/internal/scheduler"
)

// DiscordEffector posts replies to one Discord channel
type DiscordEffector struct {
	getSession func() *discordgo.Session
	channelID  string
}

// NewDiscordEffector creates a Discord effector.
// getSession is resolved on every call so the effector can share the
// sense's session, which only exists once the sense has connected.
func NewDiscordEffector(getSession func() *discordgo.Session, channelID string) *DiscordEffector {
	return &DiscordEffector{
		getSession: getSession,
		channelID:  channelID,
	}
}

// Send posts text to the channel
func (e *DiscordEffector) Send(ctx context.Context, text string) error {
	session := e.getSession()
	if session == nil {
		return fmt.Errorf("discord session not connected")
	}

	_, err := session.ChannelMessageSend(e.channelID, text, discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}
	if isNonRetryableError(err) {
		return fmt.Errorf("send rejected: %w: %w", scheduler.ErrUndeliverable, err)
	}
	return fmt.Errorf("send failed: %w", err)
}

// Typing shows the typing indicator in the channel
func (e *DiscordEffector) Typing(ctx context.Context) error {
	session := e.getSession()
	if session == nil {
		return fmt.Errorf("discord session not connected")
	}
	return session.ChannelTyping(e.channelID, discordgo.WithContext(ctx))
}

// isNonRetryableError reports client errors Discord will keep refusing
// (missing access, unknown channel, message too long). Rate limits are
// retried.
func isNonRetryableError(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return false
	}
	code := restErr.Response.StatusCode
	if code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}
