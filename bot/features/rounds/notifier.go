package rounds

import (
	"context"
	"fmt"

	"betrounds/bot/common"
	"betrounds/models"
	"betrounds/round"

	"github.com/bwmarrin/discordgo"
)

// DMNotifier sends each participant their settlement privately
type DMNotifier struct {
	session DiscordSession
}

var _ round.Notifier = (*DMNotifier)(nil)

func NewDMNotifier(session DiscordSession) *DMNotifier {
	return &DMNotifier{session: session}
}

func (n *DMNotifier) Notify(ctx context.Context, snap round.Snapshot, payout *models.WagerPayout) error {
	channel, err := n.session.UserChannelCreate(common.Snowflake(payout.DiscordID), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	if _, err := n.session.ChannelMessageSendEmbed(channel.ID, payoutEmbed(snap, payout), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send DM: %w", err)
	}
	return nil
}
