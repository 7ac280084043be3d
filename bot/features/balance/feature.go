package balance

import (
	"betrounds/bot/common"
	"betrounds/service"

	"github.com/bwmarrin/discordgo"
)

const historyLimit = 5

type Feature struct {
	session     common.Responder
	userService service.UserService
}

func New(session common.Responder, userService service.UserService) *Feature {
	return &Feature{
		session:     session,
		userService: userService,
	}
}

// Command is the /coins application command
func Command() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "coins",
		Description: "Check your coin balance and recent activity",
	}
}

func (f *Feature) HandleCommand(i *discordgo.InteractionCreate) {
	f.handleBalance(i)
}
