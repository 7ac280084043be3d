package common

import (
	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Responder is the slice of the Discord session used to answer interactions
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DeferResponse sends a deferred response to give more time for processing
func DeferResponse(s Responder, i *discordgo.InteractionCreate, ephemeral bool) error {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: flags,
		},
	})
}

// RespondEphemeral answers privately with plain text
func RespondEphemeral(s Responder, i *discordgo.InteractionCreate, message string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// RespondWithEmbed sends an embed as an interaction response
func RespondWithEmbed(s Responder, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
	}

	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}

	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

// RespondWithError sends a private error message
func RespondWithError(s Responder, i *discordgo.InteractionCreate, message string) {
	if err := RespondEphemeral(s, i, "❌ "+message); err != nil {
		log.Errorf("Error sending error response: %v", err)
	}
}

// FollowUpEphemeral sends a private follow-up to a deferred interaction
func FollowUpEphemeral(s Responder, i *discordgo.Interaction, message string, options ...discordgo.RequestOption) error {
	_, err := s.FollowupMessageCreate(i, false, &discordgo.WebhookParams{
		Content: message,
		Flags:   discordgo.MessageFlagsEphemeral,
	}, options...)
	return err
}

// FollowUpWithError sends a private error as a follow-up
func FollowUpWithError(s Responder, i *discordgo.InteractionCreate, message string) {
	if err := FollowUpEphemeral(s, i.Interaction, "❌ "+message); err != nil {
		log.Errorf("Error sending follow-up error message: %v", err)
	}
}

// FollowUpWithSuccess sends a private success message as a follow-up
func FollowUpWithSuccess(s Responder, i *discordgo.InteractionCreate, message string) {
	if err := FollowUpEphemeral(s, i.Interaction, "✅ "+message); err != nil {
		log.Errorf("Error sending follow-up success message: %v", err)
	}
}
