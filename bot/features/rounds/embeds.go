package rounds

import (
	"fmt"
	"strings"

	"betrounds/bot/common"
	"betrounds/models"
	"betrounds/round"

	"github.com/bwmarrin/discordgo"
)

const buttonsPerRow = 5

// createProgressBar generates a visual progress bar using Unicode block characters
func createProgressBar(percentage float64, length int) string {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	filled := int(float64(length) * percentage / 100)
	if filled > length {
		filled = length
	}

	return strings.Repeat("█", filled) + strings.Repeat("░", length-filled)
}

// getMultiplierEmoji returns an emoji indicator based on the multiplier value
func getMultiplierEmoji(multiplier float64) string {
	if multiplier < 1.5 {
		return "🟩" // favorite
	} else if multiplier < 3.0 {
		return "🟨"
	}
	return "🟥" // underdog
}

func describeOutcome(sides []string, o models.Outcome) string {
	switch o.Kind {
	case models.OutcomeKindSide:
		if o.Side >= 0 && o.Side < len(sides) {
			return fmt.Sprintf("🏆 **%s** won!", sides[o.Side])
		}
		return "🏆 Settled"
	case models.OutcomeKindDraw:
		return "🤝 **Draw.** Every bet was refunded."
	default:
		return "🚫 **Cancelled.** Every bet was refunded."
	}
}

// statusEmbed renders the round's public status message
func statusEmbed(snap round.Snapshot) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "🎲 " + strings.Join(snap.Sides, " vs "),
		Color: common.ColorPrimary,
	}

	var description string
	switch {
	case snap.Outcome != nil:
		description = describeOutcome(snap.Sides, *snap.Outcome)
		embed.Color = common.ColorSuccess
		if snap.Outcome.IsRefund() {
			embed.Color = common.ColorMuted
		}
	case snap.AcceptingEntries:
		description = "Bets are **open**. Pick a side below."
	default:
		description = "Bets are **closed**. Waiting for the result."
		embed.Color = common.ColorWarning
	}

	var totalPool int64
	var wagerCount int
	if snap.Odds != nil {
		totalPool = snap.Odds.TotalPool
		wagerCount = snap.Odds.WagerCount
	}
	embed.Description = fmt.Sprintf("%s\n\n**Pool: %s coins** from %d %s",
		description, round.FormatAmount(totalPool), wagerCount, plural(wagerCount, "bet", "bets"))

	for idx, name := range snap.Sides {
		side := sideOdds(snap.Odds, idx)

		percentage := float64(0)
		if totalPool > 0 {
			percentage = float64(side.Pool) * 100 / float64(totalPool)
		}

		multiplier := fmt.Sprintf("%.2fx", side.Multiplier)
		if side.Fallback {
			multiplier += "*"
		}

		title := name
		if snap.Outcome != nil && snap.Outcome.Kind == models.OutcomeKindSide && snap.Outcome.Side == idx {
			title = "🏆 " + name
		}

		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: title,
			Value: fmt.Sprintf("%s `%s` • %s coins • %d %s • %s",
				getMultiplierEmoji(side.Multiplier),
				createProgressBar(percentage, 20),
				round.FormatAmount(side.Pool),
				side.WagerCount,
				plural(side.WagerCount, "bet", "bets"),
				multiplier),
		})
	}

	if snap.RoundID != 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Round %d • * no bets against this side yet", snap.RoundID),
		}
	}
	return embed
}

func sideOdds(odds *models.RoundOdds, idx int) models.SideOdds {
	if odds == nil || idx >= len(odds.Sides) {
		return models.SideOdds{Index: idx}
	}
	return odds.Sides[idx]
}

// statusComponents renders the side buttons. Without a round ID there is
// nothing to route presses to, and a round that stopped accepting entries
// has its buttons removed.
func statusComponents(snap round.Snapshot) []discordgo.MessageComponent {
	components := []discordgo.MessageComponent{}
	if !snap.AcceptingEntries || snap.RoundID == 0 {
		return components
	}

	var row discordgo.ActionsRow
	for idx, name := range snap.Sides {
		row.Components = append(row.Components, discordgo.Button{
			Label:    truncate(name, 80),
			Style:    discordgo.PrimaryButton,
			CustomID: fmt.Sprintf("%s%d_%d", sideButtonPrefix, snap.RoundID, idx),
		})
		if len(row.Components) == buttonsPerRow {
			components = append(components, row)
			row = discordgo.ActionsRow{}
		}
	}
	if len(row.Components) > 0 {
		components = append(components, row)
	}
	return components
}

// endSelect lets the operator pick the outcome
func endSelect(roundID int64, sides []string) []discordgo.MessageComponent {
	options := make([]discordgo.SelectMenuOption, 0, len(sides)+2)
	for idx, name := range sides {
		options = append(options, discordgo.SelectMenuOption{
			Label: truncate(name, 100),
			Value: fmt.Sprintf("side:%d", idx),
			Emoji: &discordgo.ComponentEmoji{Name: "🏆"},
		})
	}
	options = append(options,
		discordgo.SelectMenuOption{Label: "Draw", Value: "draw", Description: "Refund every bet"},
		discordgo.SelectMenuOption{Label: "Cancel", Value: "cancel", Description: "Call the round off and refund every bet"},
	)

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    fmt.Sprintf("%s%d", endSelectPrefix, roundID),
					Placeholder: "Choose the outcome",
					Options:     options,
				},
			},
		},
	}
}

// payoutEmbed is the private settlement notice for one participant
func payoutEmbed(snap round.Snapshot, payout *models.WagerPayout) *discordgo.MessageEmbed {
	side := ""
	if payout.SideIndex >= 0 && payout.SideIndex < len(snap.Sides) {
		side = snap.Sides[payout.SideIndex]
	}

	embed := &discordgo.MessageEmbed{
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Your bet", Value: fmt.Sprintf("%s coins on **%s**", round.FormatAmount(payout.Amount), side), Inline: true},
			{Name: "New balance", Value: round.FormatAmount(payout.NewBalance) + " coins", Inline: true},
		},
	}

	switch {
	case payout.Refunded:
		embed.Title = "↩️ Bet refunded"
		embed.Color = common.ColorMuted
		embed.Description = fmt.Sprintf("%s\n**%s coins** were returned to you.",
			describeOutcome(snap.Sides, outcomeOf(snap)), round.FormatAmount(payout.Payout))
	case payout.Won:
		embed.Title = "🎉 You won!"
		embed.Color = common.ColorSuccess
		embed.Description = fmt.Sprintf("**%s** won. You were paid **%s coins**.", side, round.FormatAmount(payout.Payout))
	default:
		embed.Title = "😔 You lost"
		embed.Color = common.ColorDanger
		embed.Description = describeOutcome(snap.Sides, outcomeOf(snap))
	}

	if snap.GuildID != 0 && snap.ChannelID != 0 && snap.RoundID != 0 {
		embed.URL = common.MessageLink(snap.GuildID, snap.ChannelID, snap.RoundID)
	}
	return embed
}

func outcomeOf(snap round.Snapshot) models.Outcome {
	switch {
	case snap.Settlement != nil:
		return snap.Settlement.Outcome
	case snap.Outcome != nil:
		return *snap.Outcome
	default:
		return models.Cancelled()
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
