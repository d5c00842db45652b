package main

import (
	"context"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	tele "gopkg.in/telebot.v4"

	"github.com/edmondantes/salary-bot/bot"
	"github.com/edmondantes/salary-bot/core/bootstrap"
	corecmd "github.com/edmondantes/salary-bot/core/cmd"
	coreconfig "github.com/edmondantes/salary-bot/core/config"
	"github.com/edmondantes/salary-bot/core/logger"
	"github.com/edmondantes/salary-bot/flow"
	"github.com/edmondantes/salary-bot/stat"
	"github.com/edmondantes/salary-bot/storage"
	"github.com/edmondantes/salary-bot/telegram"
	"github.com/edmondantes/salary-bot/telegram/sender"
)

func main() {
	_ = godotenv.Load()

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        coreconfig.Load,
		Build:             buildApp,
	})
	if err != nil {
		log.Fatalf("bot failed: %v", err)
	}
}

type app struct {
	cfg     *coreconfig.Config
	db      *sqlx.DB
	bot     *tele.Bot
	client  *telegram.Client
	sender  *sender.Sender
	fetcher *telegram.Fetcher
}

func buildApp(cfg *coreconfig.Config) (corecmd.App, error) {
	boot, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}

	settings := telegram.Settings{
		Token:  cfg.Telegram.Token,
		APIURL: cfg.Telegram.APIURL,
	}
	b, err := telegram.NewBot(settings)
	if err != nil {
		_ = boot.DB.Close()
		return nil, err
	}
	client := telegram.NewClient(settings)

	snd := sender.New(b, sender.Options{
		QueueSize:      cfg.Sender.QueueSize,
		Workers:        cfg.Sender.Workers,
		MaxRetries:     cfg.Sender.MaxRetries,
		RetryBackoff:   time.Duration(cfg.Sender.RetryBackoffMS) * time.Millisecond,
		MaxDuration:    time.Duration(cfg.Sender.MaxDurationMS) * time.Millisecond,
		SendsPerSecond: cfg.Sender.SendsPerSecond,
		SendBurst:      cfg.Sender.SendBurst,
	})

	records := storage.NewSalaryRecords(boot.DB)
	states := storage.NewUserStates(boot.DB)
	engine := flow.NewEngine(records, stat.NewReporter(records))
	handler := bot.NewHandler(states, engine, snd)

	fetcher := telegram.NewFetcher(client, handler, telegram.FetcherOptions{
		TimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		StopGrace:      time.Duration(cfg.Fetcher.StopGraceSeconds) * time.Second,
		InterruptGrace: time.Duration(cfg.Fetcher.InterruptGraceSeconds) * time.Second,
	})

	return &app{
		cfg:     cfg,
		db:      boot.DB,
		bot:     b,
		client:  client,
		sender:  snd,
		fetcher: fetcher,
	}, nil
}

func (a *app) Start(ctx context.Context) error {
	// Long polling and a registered webhook are mutually exclusive.
	if err := a.client.DeleteWebhook(ctx, false); err != nil {
		return err
	}
	if err := a.bot.SetCommands(botCommands()); err != nil {
		logger.L.With("component", "app").Warn("can not register bot commands",
			"event", "commands.register",
			"err", logger.Sanitize(err.Error()),
		)
	}
	a.fetcher.Start()
	return nil
}

func (a *app) Stop(ctx context.Context) error {
	a.fetcher.Stop()
	a.sender.Close()
	return a.db.Close()
}

func botCommands() []tele.Command {
	return []tele.Command{
		{Text: "start", Description: "Show the main menu"},
		{Text: "add", Description: "Record a payout"},
		{Text: "stat", Description: "Monthly statistics"},
		{Text: "source", Description: "Source code"},
	}
}
