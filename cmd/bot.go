package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/stock_manager/data/session"
	"github.com/KotFed0t/stock_manager/internal/scheduler"
	"github.com/KotFed0t/stock_manager/internal/tgbot"
	"github.com/KotFed0t/stock_manager/internal/transport/telegram"
	"github.com/spf13/cobra"
)

var botAutosave bool

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the telegram bot with background jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Telegram.Token == "" {
			return errors.New("TELEGRAM_TOKEN is required")
		}
		if !cfg.Redis.Enabled() {
			return errors.New("REDIS_HOST is required for chat sessions")
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err = a.loadOrInit(ctx); err != nil {
			return err
		}
		if botAutosave {
			defer saveOnExit(ctx, a)
		}

		sched, err := scheduler.New()
		if err != nil {
			return err
		}
		if err = sched.NewIntervalJob("refresh history", a.srvc.RefreshHistory, cfg.Jobs.RefreshHistoryInterval, false); err != nil {
			return err
		}
		if err = sched.NewIntervalJob("cleanup reports", a.srvc.CleanupReports, cfg.Jobs.CleanupReportsInterval, true); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		redisSession := session.NewRedisSession(a.redisClient, cfg)
		tgController := telegram.NewController(cfg, a.srvc, redisSession)

		tgBot, err := tgbot.New(cfg, tgController)
		if err != nil {
			return err
		}
		tgBot.Start()
		defer tgBot.Stop()

		// Waiting interruption signal
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
		<-interrupt

		return nil
	},
}

func init() {
	botCmd.Flags().BoolVar(&botAutosave, "autosave", false, "save the portfolio on shutdown")
}
