package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/stock_manager/config"
	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/KotFed0t/stock_manager/utils"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("error not found in cache")

type dailyData struct {
	Date   string          `json:"date"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func historyKey(symbol string, from, to time.Time) string {
	return fmt.Sprintf("history:%s:%s:%s", symbol, from.Format(model.DateLayout), to.Format(model.DateLayout))
}

func (r *RedisCache) SetHistory(ctx context.Context, symbol string, from, to time.Time, history []model.DailyData) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.SetHistory"
	slog.Debug("start SetHistory", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	rows := make([]dailyData, 0, len(history))
	for _, d := range history {
		rows = append(rows, dailyData{Date: d.Date().Format(model.DateLayout), Close: d.Close(), Volume: d.Volume()})
	}

	historyJson, err := json.Marshal(rows)
	if err != nil {
		slog.Error("can't marshall history in SetHistory", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return errors.New("can't marshall history")
	}

	err = r.redis.Set(ctx, historyKey(symbol, from, to), historyJson, r.cfg.Cache.HistoryExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetHistory completed", slog.String("rqID", rqID), slog.String("op", op))

	return nil
}

func (r *RedisCache) GetHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.DailyData, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.GetHistory"
	key := historyKey(symbol, from, to)
	slog.Debug("GetHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.String("key", key))

	res, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()), slog.String("key", key))
		return nil, err
	}

	var rows []dailyData
	if err = json.Unmarshal([]byte(res), &rows); err != nil {
		slog.Error(
			"can't unmarshall history in GetHistory",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return nil, errors.New("can't unmarshall history")
	}

	history := make([]model.DailyData, 0, len(rows))
	for _, row := range rows {
		date, err := model.ParseDate(row.Date)
		if err != nil {
			return nil, err
		}
		d, err := model.NewDailyData(date, row.Close, row.Volume)
		if err != nil {
			return nil, err
		}
		history = append(history, d)
	}

	slog.Debug("GetHistory finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("rows", len(history)))

	return history, nil
}
