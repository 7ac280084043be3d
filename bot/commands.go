package bot

import (
	"fmt"

	"betrounds/bot/features/balance"
	"betrounds/bot/features/rounds"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

func applicationCommands() []*discordgo.ApplicationCommand {
	return append([]*discordgo.ApplicationCommand{balance.Command()}, rounds.Commands()...)
}

// registerCommands replaces the application's commands in one call. An empty
// GuildID registers them globally.
func (b *Bot) registerCommands() error {
	commands := applicationCommands()
	created, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.config.GuildID, commands)
	if err != nil {
		return fmt.Errorf("cannot register commands: %w", err)
	}

	log.WithFields(log.Fields{
		"count":   len(created),
		"guildID": b.config.GuildID,
	}).Info("Registered application commands")
	return nil
}
