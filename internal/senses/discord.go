package senses

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/vthunder/chatbot/internal/engine"
	"github.com/vthunder/chatbot/internal/logging"
)

// Handler receives one inbound message and returns command feedback, if any
type Handler func(engine.Inbound) (string, bool)

// DiscordSense listens to one Discord channel and feeds the engine
type DiscordSense struct {
	session   *discordgo.Session
	channelID string
	isAdmin   func(userID string) bool
	handler   Handler

	mu    sync.RWMutex
	botID string
}

// DiscordConfig holds Discord connection settings
type DiscordConfig struct {
	Token     string
	ChannelID string
	// IsAdmin decides who may run commands
	IsAdmin func(userID string) bool
}

// NewDiscordSense creates a new Discord sense
func NewDiscordSense(cfg DiscordConfig, handler Handler) (*DiscordSense, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token is not set")
	}
	if cfg.ChannelID == "" {
		return nil, fmt.Errorf("discord channel is not set")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	sense := &DiscordSense{
		session:   session,
		channelID: cfg.ChannelID,
		isAdmin:   cfg.IsAdmin,
		handler:   handler,
	}

	session.AddHandler(sense.handleMessage)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsGuildMembers | discordgo.IntentsMessageContent

	return sense, nil
}

// Start connects to Discord and begins listening
func (d *DiscordSense) Start() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	d.mu.Lock()
	d.botID = d.session.State.User.ID
	d.mu.Unlock()
	logging.Info("discord-sense", "Connected as %s", d.session.State.User.Username)

	return nil
}

// Stop disconnects from Discord
func (d *DiscordSense) Stop() error {
	return d.session.Close()
}

// Session returns the underlying Discord session (for sharing with effector)
func (d *DiscordSense) Session() *discordgo.Session {
	return d.session
}

func (d *DiscordSense) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	d.mu.RLock()
	botID := d.botID
	d.mu.RUnlock()

	if !d.accepts(m.Message, botID) {
		return
	}

	in := toInbound(m.Message, d.isAdmin)
	logging.Debug("discord-sense", "%s: %s", in.Speaker, logging.Truncate(in.Text, 50))

	reply, ok := d.handler(in)
	if !ok {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		logging.Info("discord-sense", "Failed to post command feedback: %v", err)
	}
}

// accepts filters to the configured channel and drops the bot's own
// messages. Delivered replies already reach the history through the
// scheduler, and command feedback is never history.
func (d *DiscordSense) accepts(m *discordgo.Message, botID string) bool {
	if m == nil || m.Author == nil {
		return false
	}
	if m.ChannelID != d.channelID {
		return false
	}
	return m.Author.ID != botID
}

func toInbound(m *discordgo.Message, isAdmin func(string) bool) engine.Inbound {
	in := engine.Inbound{
		Speaker:    displayName(m.Member, m.Author),
		Text:       m.Content,
		Privileged: isAdmin != nil && isAdmin(m.Author.ID),
	}
	if ref := m.ReferencedMessage; ref != nil && ref.Author != nil {
		in.ReplyTo = displayName(ref.Member, ref.Author)
	}
	return in
}

// displayName prefers the guild nickname, then the global display name,
// then the account name.
func displayName(member *discordgo.Member, user *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user == nil {
		return ""
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}
