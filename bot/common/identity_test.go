package common

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokerOf(t *testing.T) {
	t.Run("guild member", func(t *testing.T) {
		i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{
				User:  &discordgo.User{ID: "123", Username: "alice", GlobalName: "Alice"},
				Nick:  "Al",
				Roles: []string{"456", "not-a-role"},
			},
		}}

		inv, err := InvokerOf(i)
		require.NoError(t, err)
		assert.Equal(t, int64(123), inv.ID)
		assert.Equal(t, "alice", inv.Username)
		assert.Equal(t, "Al", inv.DisplayName)
		assert.Equal(t, []int64{456}, inv.RoleIDs)
	})

	t.Run("direct message", func(t *testing.T) {
		i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			User: &discordgo.User{ID: "9", Username: "bob"},
		}}

		inv, err := InvokerOf(i)
		require.NoError(t, err)
		assert.Equal(t, "bob", inv.DisplayName)
		assert.Empty(t, inv.RoleIDs)
	})

	t.Run("no user", func(t *testing.T) {
		_, err := InvokerOf(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{ID: "1"}})
		assert.Error(t, err)
	})
}

func TestMessageLink(t *testing.T) {
	assert.Equal(t, "https://discord.com/channels/1/2/3", MessageLink(1, 2, 3))
}
