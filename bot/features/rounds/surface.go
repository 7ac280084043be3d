package rounds

import (
	"context"
	"fmt"
	"sync"

	"betrounds/bot/common"
	"betrounds/round"

	"github.com/bwmarrin/discordgo"
)

// statusSurface is the round's public message, posted as the follow-up to
// the deferred /bet interaction
type statusSurface struct {
	session     DiscordSession
	interaction *discordgo.Interaction

	mu        sync.Mutex
	channelID string
	messageID string
}

var _ round.StatusSurface = (*statusSurface)(nil)

func newStatusSurface(session DiscordSession, interaction *discordgo.Interaction) *statusSurface {
	return &statusSurface{session: session, interaction: interaction}
}

func (s *statusSurface) Publish(ctx context.Context, snap round.Snapshot) (int64, int64, error) {
	msg, err := s.session.FollowupMessageCreate(s.interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{statusEmbed(snap)},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to post status message: %w", err)
	}

	messageID, err := common.ParseSnowflake(msg.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid message ID %q: %w", msg.ID, err)
	}
	channelID, err := common.ParseSnowflake(msg.ChannelID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid channel ID %q: %w", msg.ChannelID, err)
	}

	s.mu.Lock()
	s.messageID = msg.ID
	s.channelID = msg.ChannelID
	s.mu.Unlock()
	return messageID, channelID, nil
}

func (s *statusSurface) target() (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.messageID == "" {
		return "", "", fmt.Errorf("status message not published")
	}
	return s.channelID, s.messageID, nil
}

func (s *statusSurface) Update(ctx context.Context, snap round.Snapshot) error {
	channelID, messageID, err := s.target()
	if err != nil {
		return err
	}

	embeds := []*discordgo.MessageEmbed{statusEmbed(snap)}
	components := statusComponents(snap)
	_, err = s.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to edit status message: %w", err)
	}
	return nil
}

func (s *statusSurface) Retract(ctx context.Context) error {
	channelID, messageID, err := s.target()
	if err != nil {
		return nil
	}
	return s.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}
