package cmd

import (
	"context"
	"fmt"
	"time"

	"betrounds/bot"
	"betrounds/config"
	"betrounds/database"
	"betrounds/events"
	"betrounds/infrastructure"
	"betrounds/metrics"
	"betrounds/repository"
	"betrounds/round"
	"betrounds/service"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	setupLogging(cfg)

	log.WithField("environment", cfg.Environment).Info("Starting betrounds bot...")

	// Apply migrations before anything touches the schema
	if err := database.RunMigrationsWithURL(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("Closing database connection...")
		db.Close()
	}()

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	m := metrics.New()
	m.Subscribe(eventBus)
	if cfg.MetricsAddr != "" {
		server := metrics.NewServer(cfg.MetricsAddr, m, db)
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("Error stopping metrics server")
			}
		}()
	}

	if cfg.NATSServers != "" {
		natsClient, err := connectEventBridge(ctx, cfg.NATSServers, eventBus, m)
		if err != nil {
			return err
		}
		defer func() {
			if err := natsClient.Close(); err != nil {
				log.WithError(err).Warn("Error closing NATS connection")
			}
		}()
	}

	userService := service.NewUserService(uowFactory, cfg.StartingBalance)
	roundService := service.NewRoundService(uowFactory, service.RoundConfig{
		StartingBalance:    cfg.StartingBalance,
		FeePercent:         cfg.WagerFeePercent,
		FallbackMultiplier: cfg.FallbackMultiplier,
	})

	// Nobody can end a round left over from a previous run
	abandoned, err := roundService.AbandonUnresolved(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel abandoned rounds: %w", err)
	}
	for _, s := range abandoned {
		log.WithFields(log.Fields{
			"roundID": s.RoundID,
			"wagers":  len(s.Payouts),
		}).Warn("Cancelled round abandoned by a previous run")
	}

	discordBot, err := bot.New(ctx, bot.Config{
		Token:   cfg.DiscordToken,
		GuildID: cfg.DiscordGuildID,
		Rounds: round.Config{
			PromptTimeout: cfg.AmountPromptTimeout,
			MaxAutoStop:   cfg.MaxAutoStop,
		},
	}, userService, roundService)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}

	log.Infof("Bot is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Live rounds are cancelled and refunded before the connection goes away
	log.Info("Shutting down bot...")
	if err := discordBot.Close(); err != nil {
		log.WithError(err).Error("Error closing Discord bot")
	}

	log.Info("Shutdown completed")
	return nil
}

func connectEventBridge(ctx context.Context, servers string, bus *events.Bus, recorder infrastructure.PublishRecorder) (*infrastructure.NATSClient, error) {
	client := infrastructure.NewNATSClient(servers)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, err
	}

	mapper := infrastructure.NewEventSubjectMapper()
	if err := client.EnsureRoundEventStream(mapper.GetAllSubjects()); err != nil {
		client.Close()
		return nil, err
	}

	infrastructure.NewEventBridge(client, mapper, recorder).Subscribe(bus)
	log.Info("Forwarding events to NATS")
	return client, nil
}
