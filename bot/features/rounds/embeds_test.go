package rounds

import (
	"testing"

	"betrounds/models"
	"betrounds/round"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() round.Snapshot {
	return round.Snapshot{
		RoundID:   5000,
		ChannelID: 10,
		GuildID:   77,
		Sides:     []string{"Red", "Blue"},
		Stage:     models.RoundStageOpen,
		Odds: &models.RoundOdds{
			Sides: []models.SideOdds{
				{Index: 0, Name: "Red", Pool: 300, WagerCount: 1, Multiplier: 1.33},
				{Index: 1, Name: "Blue", Pool: 0, WagerCount: 0, Multiplier: 2, Fallback: true},
			},
			TotalPool:  300,
			WagerCount: 1,
		},
		AcceptingEntries: true,
	}
}

func TestStatusEmbed(t *testing.T) {
	embed := statusEmbed(sampleSnapshot())

	assert.Equal(t, "🎲 Red vs Blue", embed.Title)
	assert.Contains(t, embed.Description, "**open**")
	assert.Contains(t, embed.Description, "Pool: 300 coins** from 1 bet")
	require.Len(t, embed.Fields, 2)
	assert.Contains(t, embed.Fields[0].Value, "1.33x")
	assert.Contains(t, embed.Fields[1].Value, "2.00x*")
	assert.Contains(t, embed.Footer.Text, "5000")
}

func TestStatusEmbed_Resolved(t *testing.T) {
	snap := sampleSnapshot()
	won := models.SideWins(1)
	snap.Outcome = &won
	snap.AcceptingEntries = false

	embed := statusEmbed(snap)
	assert.Contains(t, embed.Description, "**Blue** won")
	assert.Equal(t, "🏆 Blue", embed.Fields[1].Name)

	draw := models.Draw()
	snap.Outcome = &draw
	assert.Contains(t, statusEmbed(snap).Description, "refunded")
}

func TestStatusComponents(t *testing.T) {
	snap := sampleSnapshot()
	snap.Sides = []string{"A", "B", "C", "D", "E", "F", "G"}

	components := statusComponents(snap)
	require.Len(t, components, 2)
	first := components[0].(discordgo.ActionsRow)
	second := components[1].(discordgo.ActionsRow)
	assert.Len(t, first.Components, 5)
	assert.Len(t, second.Components, 2)

	last := second.Components[1].(discordgo.Button)
	roundID, side, err := parseSideButton(last.CustomID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), roundID)
	assert.Equal(t, 6, side)

	snap.AcceptingEntries = false
	assert.Empty(t, statusComponents(snap))

	snap.AcceptingEntries = true
	snap.RoundID = 0
	assert.Empty(t, statusComponents(snap))
}

func TestEndSelect(t *testing.T) {
	components := endSelect(5000, []string{"Red", "Blue"})
	menu := components[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)

	assert.Equal(t, "round_end_5000", menu.CustomID)
	require.Len(t, menu.Options, 4)
	for _, opt := range menu.Options {
		_, err := parseOutcome(opt.Value)
		assert.NoError(t, err, opt.Value)
	}
}

func TestPayoutEmbed(t *testing.T) {
	snap := sampleSnapshot()
	snap.Settlement = &models.Settlement{Outcome: models.SideWins(0)}

	won := payoutEmbed(snap, &models.WagerPayout{DiscordID: 1, SideIndex: 0, Amount: 300, Payout: 400, Won: true, NewBalance: 1100})
	assert.Equal(t, "🎉 You won!", won.Title)
	assert.Contains(t, won.Description, "400 coins")
	assert.Equal(t, "https://discord.com/channels/77/10/5000", won.URL)

	lost := payoutEmbed(snap, &models.WagerPayout{DiscordID: 2, SideIndex: 1, Amount: 100, NewBalance: 900})
	assert.Equal(t, "😔 You lost", lost.Title)
	assert.Contains(t, lost.Description, "**Red** won")

	snap.Settlement = &models.Settlement{Outcome: models.Cancelled()}
	refund := payoutEmbed(snap, &models.WagerPayout{DiscordID: 2, SideIndex: 1, Amount: 100, Payout: 100, Refunded: true, NewBalance: 1000})
	assert.Equal(t, "↩️ Bet refunded", refund.Title)
	assert.Contains(t, refund.Description, "Cancelled")
}
