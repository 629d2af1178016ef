package main

import (
	"os"

	"github.com/KotFed0t/stock_manager/internal/transport/console"
	"github.com/spf13/cobra"
)

var (
	consoleLoad     bool
	consoleChartDir string
	consoleStyle    string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run the interactive text menu",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if consoleLoad {
			if err = a.loadOrInit(ctx); err != nil {
				return err
			}
		}

		c, err := console.New(a.srvc, os.Stdin, cmd.OutOrStdout(), consoleStyle, console.WithChartDir(consoleChartDir))
		if err != nil {
			return err
		}

		return c.Run(ctx)
	},
}

func init() {
	consoleCmd.Flags().BoolVar(&consoleLoad, "load", true, "load the stored portfolio on start")
	consoleCmd.Flags().StringVar(&consoleChartDir, "chart-dir", ".", "directory for chart workbooks")
	consoleCmd.Flags().StringVar(&consoleStyle, "style", "auto", "glamour style of reports: auto, dark, light, notty")
}
