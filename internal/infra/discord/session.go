package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Session wraps the discordgo gateway session with the intents and helpers
// this bot needs. Event handlers are attached by the bot app.
type Session struct {
	*discordgo.Session
}

func New(token string) (*Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("discord bot token is empty")
	}

	s, err := discordgo.New("Bot " + strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent

	return &Session{Session: s}, nil
}

// RegisterCommands overwrites the guild command set in one call so removed
// commands disappear instead of lingering.
func (s *Session) RegisterCommands(guildID string, cmds []*discordgo.ApplicationCommand) error {
	if s == nil || s.Session == nil || s.State == nil || s.State.User == nil {
		return fmt.Errorf("discord session is not connected")
	}

	if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, cmds); err != nil {
		return fmt.Errorf("register application commands: %w", err)
	}

	return nil
}

// DM opens (or reuses) the DM channel with a user and sends the payload.
func (s *Session) DM(userID string, msg *discordgo.MessageSend) error {
	if s == nil || s.Session == nil {
		return fmt.Errorf("discord session is not connected")
	}

	ch, err := s.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if _, err := s.ChannelMessageSendComplex(ch.ID, msg); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}

	return nil
}

// IsThread reports whether a channel is any flavor of thread.
func IsThread(ch *discordgo.Channel) bool {
	if ch == nil {
		return false
	}
	switch ch.Type {
	case discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread,
		discordgo.ChannelTypeGuildNewsThread:
		return true
	}
	return false
}
