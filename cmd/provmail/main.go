package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.io/infrasutra/provmail/internal/actions"
	"github.io/infrasutra/provmail/internal/api"
	"github.io/infrasutra/provmail/internal/bot"
	"github.io/infrasutra/provmail/internal/config"
	"github.io/infrasutra/provmail/internal/events"
	"github.io/infrasutra/provmail/internal/mailtm"
	"github.io/infrasutra/provmail/internal/notify"
	"github.io/infrasutra/provmail/internal/poller"
	"github.io/infrasutra/provmail/internal/provision"
	"github.io/infrasutra/provmail/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if cfg.BotToken == "" {
		logger.Error("BOT_TOKEN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Error("open state store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}
	if cfg.DBPath == "" {
		logger.Info("state store is in-memory; sessions are lost on restart")
	}

	client := mailtm.NewClient(cfg.MailBaseURL)
	provisioner := provision.New(client, logger, cfg.ProvisionRetries, cfg.ProvisionBackoff)

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Error("connect bot", "error", err)
		os.Exit(1)
	}

	hub := events.NewHub()
	chatBot := bot.New(botAPI, db, provisioner, client, logger)
	dispatcher := notify.NewDispatcher(chatBot)
	handler := actions.New(db, client, chatBot, logger)
	mailPoller := poller.New(client, db, dispatcher, hub, logger,
		cfg.PollInterval, cfg.InlineBodyLimit, cfg.CacheTTL)

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpSrv := &http.Server{
		Addr:    httpAddr,
		Handler: api.NewServer(db, hub, logger),
	}

	go func() {
		logger.Info("poll loop started", "interval", cfg.PollInterval)
		mailPoller.Run(ctx)
	}()

	go func() {
		logger.Info("ops server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server stopped", "error", err)
		}
	}()

	go chatBot.Run(ctx, handler)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown ops server", "error", err)
	}
}
