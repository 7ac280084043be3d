package rounds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"betrounds/bot/common"
	"betrounds/models"
	"betrounds/round"
	"betrounds/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const deliverTimeout = 2 * time.Second

var manageGuild int64 = discordgo.PermissionManageGuild

// Feature runs betting rounds through Discord
type Feature struct {
	session     DiscordSession
	coordinator *round.Coordinator
	prompts     *promptRegistry
}

// NewFeature creates a new rounds feature instance
func NewFeature(session DiscordSession, coordinator *round.Coordinator) *Feature {
	return &Feature{
		session:     session,
		coordinator: coordinator,
		prompts:     newPromptRegistry(),
	}
}

// Commands returns the application commands this feature answers
func Commands() []*discordgo.ApplicationCommand {
	minMinutes := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "bet",
			Description:              "Open a betting round",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "sides",
					Description: "Comma separated sides, e.g. Red, Blue",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "denylist",
					Description: "Users or roles who may not bet",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "auto_stop_minutes",
					Description: "Stop accepting bets after this many minutes",
					Required:    false,
					// The upper bound is the coordinator's configured cap
					MinValue: &minMinutes,
				},
			},
		},
		{
			Name:                     StopCommandName,
			Type:                     discordgo.MessageApplicationCommand,
			DefaultMemberPermissions: &manageGuild,
		},
		{
			Name:                     EndCommandName,
			Type:                     discordgo.MessageApplicationCommand,
			DefaultMemberPermissions: &manageGuild,
		},
	}
}

// HandleCommand handles /bet
func (f *Feature) HandleCommand(i *discordgo.InteractionCreate) {
	if !isOperator(i) {
		common.RespondWithError(f.session, i, "You need the Manage Server permission to run rounds.")
		return
	}

	invoker, err := common.InvokerOf(i)
	if err != nil {
		log.WithError(err).Error("Error resolving /bet invoker")
		common.RespondWithError(f.session, i, "Unable to process request.")
		return
	}

	var rawSides, rawDenylist string
	var autoStop time.Duration
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "sides":
			rawSides = opt.StringValue()
		case "denylist":
			rawDenylist = opt.StringValue()
		case "auto_stop_minutes":
			autoStop = time.Duration(opt.IntValue()) * time.Minute
		}
	}

	sides, err := parseSides(rawSides)
	if err != nil {
		common.RespondWithError(f.session, i, err.Error())
		return
	}
	if _, err := service.ValidateSides(sides); err != nil {
		common.RespondWithError(f.session, i, round.UserMessage(err))
		return
	}
	if f.coordinator.Active() != nil {
		common.RespondWithError(f.session, i, round.UserMessage(service.ErrRoundActive))
		return
	}

	if err := common.DeferResponse(f.session, i, false); err != nil {
		log.WithError(err).Error("Error deferring /bet response")
		return
	}

	guildID, _ := common.ParseSnowflake(i.GuildID)
	sup, err := f.coordinator.Open(context.Background(), round.OpenRequest{
		GuildID:   guildID,
		CreatorID: invoker.ID,
		Sides:     sides,
		Denylist:  parseDenylist(rawDenylist),
		AutoStop:  autoStop,
		Surface:   newStatusSurface(f.session, i.Interaction),
	})
	if err != nil {
		log.WithError(err).WithField("creator", invoker.ID).Warn("Failed to open round")
		message := "❌ " + round.UserMessage(err)
		if _, editErr := f.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &message}); editErr != nil {
			common.FollowUpWithError(f.session, i, round.UserMessage(err))
		}
		return
	}

	log.WithFields(log.Fields{
		"roundID": sup.ID(),
		"creator": invoker.ID,
	}).Info("Round opened from /bet")
}

// HandleMessageCommand handles the stop and end message commands
func (f *Feature) HandleMessageCommand(i *discordgo.InteractionCreate) {
	if !isOperator(i) {
		common.RespondWithError(f.session, i, "You need the Manage Server permission to run rounds.")
		return
	}

	data := i.ApplicationCommandData()
	roundID, err := common.ParseSnowflake(data.TargetID)
	if err != nil {
		common.RespondWithError(f.session, i, round.UserMessage(service.ErrNoActiveRound))
		return
	}
	sup, err := f.coordinator.Lookup(roundID)
	if err != nil {
		common.RespondWithError(f.session, i, round.UserMessage(err))
		return
	}

	switch data.Name {
	case StopCommandName:
		if err := sup.Stop(); err != nil {
			common.RespondWithError(f.session, i, round.UserMessage(err))
			return
		}
		if err := common.RespondEphemeral(f.session, i, "✅ Bets are closed. Use **"+EndCommandName+"** once the result is known."); err != nil {
			log.WithError(err).Debug("Error confirming stop")
		}

	case EndCommandName:
		if sup.Session().Stage() == models.RoundStageResolved {
			common.RespondWithError(f.session, i, round.UserMessage(service.ErrRoundResolved))
			return
		}
		err := f.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:    "Who won?",
				Components: endSelect(roundID, sup.Session().Sides()),
				Flags:      discordgo.MessageFlagsEphemeral,
			},
		})
		if err != nil {
			log.WithError(err).Error("Error showing outcome menu")
		}

	default:
		log.WithField("command", data.Name).Warn("Unknown round message command")
	}
}

// HandleInteraction routes round buttons, the outcome menu and amount modals
func (f *Feature) HandleInteraction(i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		switch {
		case strings.HasPrefix(customID, sideButtonPrefix):
			f.handleSideButton(i)
		case strings.HasPrefix(customID, endSelectPrefix):
			f.handleEndSelect(i)
		}
	case discordgo.InteractionModalSubmit:
		if customID := i.ModalSubmitData().CustomID; strings.HasPrefix(customID, amountModalPrefix) {
			f.handleAmountModal(i, strings.TrimPrefix(customID, amountModalPrefix))
		}
	}
}

// IsRoundComponent reports whether a custom ID belongs to this feature
func IsRoundComponent(customID string) bool {
	return strings.HasPrefix(customID, sideButtonPrefix) ||
		strings.HasPrefix(customID, endSelectPrefix) ||
		strings.HasPrefix(customID, amountModalPrefix)
}

func (f *Feature) handleSideButton(i *discordgo.InteractionCreate) {
	roundID, side, err := parseSideButton(i.MessageComponentData().CustomID)
	if err != nil {
		log.WithError(err).Warn("Ignoring side button")
		return
	}

	sup, err := f.coordinator.Lookup(roundID)
	if err != nil {
		common.RespondWithError(f.session, i, round.UserMessage(service.ErrEntryClosed))
		return
	}
	sides := sup.Session().Sides()
	if side < 0 || side >= len(sides) {
		common.RespondWithError(f.session, i, round.UserMessage(service.ErrInvalidSide))
		return
	}

	invoker, err := common.InvokerOf(i)
	if err != nil {
		log.WithError(err).Error("Error resolving bettor")
		common.RespondWithError(f.session, i, "Unable to process request.")
		return
	}

	e := &engagement{
		session:     f.session,
		prompts:     f.prompts,
		interaction: i.Interaction,
		invoker:     invoker,
		side:        side,
		sideName:    sides[side],
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	if err := sup.Deliver(ctx, e); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.WithField("roundID", roundID).Warn("Round did not accept engagement in time")
		}
		if e.claim() {
			common.RespondWithError(f.session, i, round.UserMessage(err))
		}
	}
}

func (f *Feature) handleAmountModal(i *discordgo.InteractionCreate, key string) {
	if err := common.DeferResponse(f.session, i, true); err != nil {
		log.WithError(err).Error("Error deferring amount submission")
		return
	}
	if !f.prompts.deliver(key, i) {
		if err := common.FollowUpEphemeral(f.session, i.Interaction, expiredPromptMessage); err != nil {
			log.WithError(err).Debug("Error answering expired amount submission")
		}
	}
}

func (f *Feature) handleEndSelect(i *discordgo.InteractionCreate) {
	if !isOperator(i) {
		common.RespondWithError(f.session, i, "You need the Manage Server permission to run rounds.")
		return
	}

	data := i.MessageComponentData()
	roundID, err := common.ParseSnowflake(strings.TrimPrefix(data.CustomID, endSelectPrefix))
	if err != nil || len(data.Values) == 0 {
		log.WithField("customID", data.CustomID).Warn("Ignoring malformed outcome menu")
		return
	}

	outcome, err := parseOutcome(data.Values[0])
	if err != nil {
		common.RespondWithError(f.session, i, err.Error())
		return
	}

	sup, err := f.coordinator.Lookup(roundID)
	if err == nil {
		err = sup.End(outcome)
	}
	if err != nil {
		common.RespondWithError(f.session, i, round.UserMessage(err))
		return
	}

	log.WithFields(log.Fields{
		"roundID": roundID,
		"outcome": outcome.String(),
	}).Info("Round ended by operator")

	err = f.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    fmt.Sprintf("✅ Outcome recorded: %s Settling bets now.", describeOutcome(sup.Session().Sides(), outcome)),
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		log.WithError(err).Debug("Error confirming outcome")
	}
}

func isOperator(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&manageGuild != 0
}
