package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/susu3304/dagsplit/internal/api"
	"github.com/susu3304/dagsplit/internal/config"
	"github.com/susu3304/dagsplit/internal/db"
	"github.com/susu3304/dagsplit/internal/network"
	"github.com/susu3304/dagsplit/internal/notify"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal(err)
	}

	// Connect to database
	database, err := db.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(context.Background()); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Initialize notifier
	var notifier notify.Notifier = notify.Nop{}
	if cfg.NotifierEnabled() {
		explorer, ok := network.Lookup(cfg.TargetChainID)
		if !ok {
			explorer = network.Primordial
		}
		discord, err := notify.NewDiscord(cfg.DiscordToken, cfg.DiscordChannelID, notify.WithExplorer(explorer))
		if err != nil {
			log.Fatalf("failed to create discord notifier: %v", err)
		}
		notifier = discord
		log.WithField("channel", cfg.DiscordChannelID).Info("discord notifications enabled")
	}

	// Start reminder worker
	reminders := notify.NewReminderWorker(database, notifier, cfg.ReminderInterval)
	reminders.Start()
	defer reminders.Stop()

	// Start API server
	apiServer := api.New(cfg, database, api.WithNotifier(notifier))
	go func() {
		if err := apiServer.Start(); err != nil {
			log.WithError(err).Error("API server error")
		}
	}()

	// Wait for signal to stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("API server shutdown")
	}
}
