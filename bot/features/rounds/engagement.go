package rounds

import (
	"context"
	"errors"
	"strings"
	"sync"

	"betrounds/bot/common"
	"betrounds/round"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const expiredPromptMessage = "This bet prompt has expired. Press a side button again to bet."

// engagement adapts a side button press to round.Engagement
type engagement struct {
	session     DiscordSession
	prompts     *promptRegistry
	interaction *discordgo.Interaction
	invoker     *common.Invoker
	side        int
	sideName    string

	mu        sync.Mutex
	responded bool
}

var _ round.Engagement = (*engagement)(nil)

func (e *engagement) ParticipantID() int64 { return e.invoker.ID }
func (e *engagement) Username() string     { return e.invoker.Username }
func (e *engagement) GroupIDs() []int64    { return e.invoker.RoleIDs }
func (e *engagement) SideIndex() int       { return e.side }

// claim marks the button interaction as answered. Discord accepts exactly
// one initial response per interaction.
func (e *engagement) claim() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.responded {
		return false
	}
	e.responded = true
	return true
}

func (e *engagement) PromptAmount(ctx context.Context) (round.AmountReply, error) {
	if !e.claim() {
		return nil, errors.New("interaction already answered")
	}

	submissions, release := e.prompts.register(e.interaction.ID)
	defer func() {
		if late := release(); late != nil {
			if err := common.FollowUpEphemeral(e.session, late.Interaction, expiredPromptMessage); err != nil {
				log.WithError(err).Debug("Failed to answer late amount submission")
			}
		}
	}()

	err := e.session.InteractionRespond(e.interaction, amountModal(e.interaction.ID, e.sideName), discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	select {
	case submit := <-submissions:
		return &amountReply{
			session:     e.session,
			interaction: submit.Interaction,
			value:       modalValue(submit.ModalSubmitData(), amountInputID),
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *engagement) Reply(ctx context.Context, text string) error {
	if e.claim() {
		return e.session.InteractionRespond(e.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: text,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		}, discordgo.WithContext(ctx))
	}
	return common.FollowUpEphemeral(e.session, e.interaction, text, discordgo.WithContext(ctx))
}

// amountReply answers the modal submission, which was deferred on arrival
type amountReply struct {
	session     DiscordSession
	interaction *discordgo.Interaction
	value       string
}

func (a *amountReply) Value() string { return a.value }

func (a *amountReply) Reply(ctx context.Context, text string) error {
	return common.FollowUpEphemeral(a.session, a.interaction, text, discordgo.WithContext(ctx))
}

func amountModal(key, sideName string) *discordgo.InteractionResponse {
	// Modal titles are capped at 45 characters
	title := "Bet on " + sideName
	if r := []rune(title); len(r) > 45 {
		title = string(r[:42]) + "..."
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: amountModalPrefix + key,
			Title:    title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    amountInputID,
							Label:       "Amount (coins)",
							Style:       discordgo.TextInputShort,
							Placeholder: "100",
							Required:    true,
							MaxLength:   20,
						},
					},
				},
			},
		},
	}
}

func modalValue(data discordgo.ModalSubmitInteractionData, inputID string) string {
	for _, comp := range data.Components {
		row, ok := comp.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok && input.CustomID == inputID {
				return strings.TrimSpace(input.Value)
			}
		}
	}
	return ""
}
