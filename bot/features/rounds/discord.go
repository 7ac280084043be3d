package rounds

import (
	"betrounds/bot/common"

	"github.com/bwmarrin/discordgo"
)

// DiscordSession is the part of *discordgo.Session the rounds feature calls
type DiscordSession interface {
	common.Responder
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ DiscordSession = (*discordgo.Session)(nil)

// Custom ID prefixes for round components
const (
	sideButtonPrefix  = "round_side_"
	amountModalPrefix = "round_amount_"
	endSelectPrefix   = "round_end_"
	amountInputID     = "amount"
)

// Message command names
const (
	StopCommandName = "Stop accepting bets"
	EndCommandName  = "End and finalise bets"
)
