package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/spf13/cobra"
)

var (
	exportDir    string
	exportUpload bool
	fetchFrom    string
	fetchTo      string
)

var initStoreCmd = &cobra.Command{
	Use:   "init-store",
	Short: "Create the storage if it doesn't exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err = a.srvc.CreateStore(cmd.Context()); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "store is ready (%s)\n", cfg.Storage.Backend)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the workbook with every stored stock",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err = a.loadOrInit(ctx); err != nil {
			return err
		}

		fileBytes, filename, err := a.srvc.ExportWorkbook(ctx)
		if err != nil {
			return err
		}

		if exportUpload {
			link, err := a.srvc.Upload(ctx, fileBytes, filename)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		}

		path := filepath.Join(exportDir, filename)
		if err = os.WriteFile(path, fileBytes, 0o644); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [SYMBOL...]",
	Short: "Retrieve daily data for the stored stocks and save them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		to := time.Now()
		if fetchTo != "" {
			parsed, err := model.ParseDate(fetchTo)
			if err != nil {
				return err
			}
			to = parsed
		}
		from := to.AddDate(0, 0, -cfg.Jobs.RefreshHistoryDays)
		if fetchFrom != "" {
			parsed, err := model.ParseDate(fetchFrom)
			if err != nil {
				return err
			}
			from = parsed
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err = a.loadOrInit(ctx); err != nil {
			return err
		}

		added, err := a.srvc.FetchHistory(ctx, from, to, args...)
		if err != nil {
			return err
		}

		if _, err = a.srvc.Save(ctx); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "retrieved %d new daily samples\n", added)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", ".", "output directory")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "upload to google drive instead of writing a file")

	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "start date YYYY-MM-DD, default is REFRESH_HISTORY_DAYS before --to")
	fetchCmd.Flags().StringVar(&fetchTo, "to", "", "end date YYYY-MM-DD, default is today")
}
