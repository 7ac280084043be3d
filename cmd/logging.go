package cmd

import (
	"os"

	"betrounds/config"

	log "github.com/sirupsen/logrus"
)

func setupLogging(cfg *config.Config) {
	log.SetOutput(os.Stdout)

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
