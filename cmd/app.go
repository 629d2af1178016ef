package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/stock_manager/config"
	"github.com/KotFed0t/stock_manager/data"
	"github.com/KotFed0t/stock_manager/data/cache"
	"github.com/KotFed0t/stock_manager/data/repository/file"
	"github.com/KotFed0t/stock_manager/data/repository/postgres"
	"github.com/KotFed0t/stock_manager/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/stock_manager/internal/externalApi/moexApi"
	"github.com/KotFed0t/stock_manager/internal/reportGenerator/xslsxGenerator"
	"github.com/KotFed0t/stock_manager/internal/service/stockService"
	"github.com/redis/go-redis/v9"
)

type app struct {
	srvc        *stockService.StockService
	redisClient *redis.Client
	closers     []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	var gateway stockService.Gateway
	switch cfg.Storage.Backend {
	case config.StorageBackendPostgres:
		pgClient := data.NewPostgresClient(cfg)
		a.closers = append(a.closers, pgClient.Close)
		gateway = postgres.NewPostgres(cfg, pgClient)
	case config.StorageBackendFile:
		gateway = file.New(cfg.Storage.FilePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	var historyCache stockService.Cache
	if cfg.Redis.Enabled() {
		a.redisClient = data.NewRedisClient(cfg)
		a.closers = append(a.closers, a.redisClient.Close)
		historyCache = cache.NewRedisCache(a.redisClient, cfg)
	}

	var cloud stockService.CloudStorage
	if cfg.GoogleDrive.Enabled() {
		drive, err := googleDriveApi.New(ctx, cfg)
		if err != nil {
			a.close()
			return nil, err
		}
		cloud = drive
	}

	a.srvc = stockService.New(cfg, gateway, moexApi.New(cfg), historyCache, xslsxGenerator.New(), cloud)

	return a, nil
}

// loadOrInit loads the stored portfolio, creating the store first if it doesn't exist yet.
func (a *app) loadOrInit(ctx context.Context) error {
	if err := a.srvc.CreateStore(ctx); err != nil {
		return err
	}

	n, err := a.srvc.Load(ctx)
	if err != nil {
		return err
	}

	slog.Info("portfolio loaded", slog.Int("stocks", n))
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("close error", slog.String("err", err.Error()))
		}
	}
}

func saveOnExit(ctx context.Context, a *app) {
	n, err := a.srvc.Save(context.WithoutCancel(ctx))
	if err != nil {
		slog.Error("save on exit failed", slog.String("err", err.Error()))
		return
	}
	slog.Info("portfolio saved", slog.Int("stocks", n))
}
