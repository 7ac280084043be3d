package bot

import (
	"context"
	"fmt"

	"betrounds/bot/features/balance"
	"betrounds/bot/features/rounds"
	"betrounds/round"
	"betrounds/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token   string
	GuildID string
	Rounds  round.Config
}

type Bot struct {
	config      Config
	session     *discordgo.Session
	coordinator *round.Coordinator

	balanceFeature *balance.Feature
	roundsFeature  *rounds.Feature
}

// New connects to Discord and starts serving commands. Rounds run under ctx;
// cancelling it refunds any round still live.
func New(ctx context.Context, config Config, userService service.UserService, roundService service.RoundService) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages

	coordinator := round.NewCoordinator(ctx, roundService, rounds.NewDMNotifier(dg), config.Rounds)

	bot := &Bot{
		config:         config,
		session:        dg,
		coordinator:    coordinator,
		balanceFeature: balance.New(dg, userService),
		roundsFeature:  rounds.NewFeature(dg, coordinator),
	}

	dg.AddHandler(bot.handleCommands)
	dg.AddHandler(bot.handleInteractions)
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.WithFields(log.Fields{
			"user":   r.User.Username,
			"guilds": len(r.Guilds),
		}).Info("Discord session ready")
	})

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	return bot, nil
}

// Close waits for live rounds to settle, then closes the gateway connection.
// Cancel the context passed to New first or this blocks until every round ends.
func (b *Bot) Close() error {
	b.coordinator.Wait()
	return b.session.Close()
}

// handleCommands routes slash and message commands
func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	switch data.Name {
	case "coins":
		b.balanceFeature.HandleCommand(i)
	case "bet":
		b.roundsFeature.HandleCommand(i)
	case rounds.StopCommandName, rounds.EndCommandName:
		b.roundsFeature.HandleMessageCommand(i)
	default:
		log.WithField("command", data.Name).Warn("Unknown command")
	}
}

// handleInteractions routes buttons, select menus and modals
func (b *Bot) handleInteractions(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var customID string
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		customID = i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		customID = i.ModalSubmitData().CustomID
	default:
		return
	}

	if rounds.IsRoundComponent(customID) {
		b.roundsFeature.HandleInteraction(i)
		return
	}
	log.WithField("customID", customID).Debug("Ignoring unknown component")
}
