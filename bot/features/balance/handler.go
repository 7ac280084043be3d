package balance

import (
	"context"
	"fmt"
	"strings"

	"betrounds/bot/common"
	"betrounds/models"
	"betrounds/round"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

func (f *Feature) handleBalance(i *discordgo.InteractionCreate) {
	ctx := context.Background()

	invoker, err := common.InvokerOf(i)
	if err != nil {
		log.Errorf("Error resolving /coins invoker: %v", err)
		common.RespondWithError(f.session, i, "Unable to process request. Please try again.")
		return
	}

	// Get or create user
	user, err := f.userService.GetOrCreateUser(ctx, invoker.ID, invoker.Username)
	if err != nil {
		log.Errorf("Error getting user %d: %v", invoker.ID, err)
		common.RespondWithError(f.session, i, "Unable to retrieve balance. Please try again.")
		return
	}

	history, err := f.userService.GetHistory(ctx, invoker.ID, historyLimit)
	if err != nil {
		// The balance alone is still worth showing
		log.Warnf("Error getting history for user %d: %v", invoker.ID, err)
	}

	if err := common.RespondWithEmbed(f.session, i, balanceEmbed(invoker.DisplayName, user, history), true); err != nil {
		log.Errorf("Error responding to coins command: %v", err)
	}
}

func balanceEmbed(displayName string, user *models.User, history []*models.BalanceHistory) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "💰 " + displayName,
		Description: fmt.Sprintf("Balance: **%s coins**", round.FormatAmount(user.Balance)),
		Color:       common.ColorPrimary,
	}

	if len(history) > 0 {
		lines := make([]string, 0, len(history))
		for _, h := range history {
			lines = append(lines, fmt.Sprintf("%s `%+d` %s",
				common.FormatDiscordTimestamp(h.CreatedAt, "R"),
				h.ChangeAmount,
				describeTransaction(h.TransactionType)))
		}
		embed.Fields = []*discordgo.MessageEmbedField{{
			Name:  "Recent activity",
			Value: strings.Join(lines, "\n"),
		}}
	}
	return embed
}

func describeTransaction(t models.TransactionType) string {
	switch t {
	case models.TransactionTypeInitial:
		return "starting balance"
	case models.TransactionTypeRoundWager:
		return "bet placed"
	case models.TransactionTypeRoundPayout:
		return "winnings"
	case models.TransactionTypeRoundRefund:
		return "refund"
	default:
		return string(t)
	}
}
