package main

import (
	"log/slog"

	"github.com/KotFed0t/stock_manager/config"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "stock_manager",
	Short: "Stock portfolio tracker",
	Long: `Tracks stock holdings with their daily price and volume history,
persists them and renders performance reports and price charts.
Runs as a telegram bot or as an interactive console menu.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.MustLoad()

		setupLogger(cfg)
		slog.Debug("config", slog.Any("cfg", cfg))
	},
}

func init() {
	rootCmd.AddCommand(botCmd, consoleCmd, initStoreCmd, exportCmd, fetchCmd)
}
