package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KotFed0t/stock_manager/data"
	"github.com/KotFed0t/stock_manager/data/repository"
	"github.com/KotFed0t/stock_manager/internal/converter/dbConverter"
	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/KotFed0t/stock_manager/internal/model/dbModel"
	"github.com/KotFed0t/stock_manager/utils"
	"github.com/jackc/pgx/v5/pgconn"
)

// postgres позволяет максимум 65535 параметров в запросе
const insertBatchSize = 1000

func (r *Postgres) CreateStore(ctx context.Context) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.CreateStore"

	slog.Debug("CreateStore start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		if err != nil {
			slog.Error("CreateStore failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("CreateStore completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	return data.MigratePostgres(r.db, r.cfg.Postgres.MigrationDir)
}

func (r *Postgres) LoadAll(ctx context.Context) (portfolio *model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.LoadAll"

	slog.Debug("LoadAll start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		if err != nil {
			slog.Error("LoadAll failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("LoadAll completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("stocks", portfolio.Len()))
		}
	}()

	var stocks []dbModel.Stock
	err = r.txOrDb(ctx).SelectContext(ctx, &stocks, `
		SELECT symbol, name, shares, ordinal
		FROM stocks
		ORDER BY ordinal
		`)
	if err != nil {
		return nil, err
	}

	var history []dbModel.DailyData
	err = r.txOrDb(ctx).SelectContext(ctx, &history, `
		SELECT symbol, trade_date, close, volume, ordinal
		FROM daily_data
		ORDER BY symbol, ordinal
		`)
	if err != nil {
		return nil, err
	}

	historyBySymbol := make(map[string][]dbModel.DailyData, len(stocks))
	for _, row := range history {
		historyBySymbol[row.Symbol] = append(historyBySymbol[row.Symbol], row)
	}

	portfolio = model.NewPortfolio()
	for _, dbStock := range stocks {
		stock, err := dbConverter.ConvertStock(dbStock, historyBySymbol[dbStock.Symbol])
		if err != nil {
			return nil, err
		}
		if err = portfolio.Attach(stock); err != nil {
			return nil, err
		}
	}

	return portfolio, nil
}

// SaveAll replaces the stored portfolio with p in one transaction.
func (r *Postgres) SaveAll(ctx context.Context, p *model.Portfolio) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.SaveAll"

	slog.Debug("SaveAll start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("stocks", p.Len()))
	defer func() {
		if err != nil {
			slog.Error("SaveAll failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SaveAll completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	stocks := make([]dbModel.Stock, 0, p.Len())
	var history []dbModel.DailyData
	for i, stock := range p.Stocks() {
		stocks = append(stocks, dbConverter.ConvertToDBStock(stock, i))
		history = append(history, dbConverter.ConvertToDBDailyData(stock)...)
	}

	err = r.WithinTransaction(ctx, func(ctx context.Context) error {
		// daily_data удалится каскадно
		if _, err := r.txOrDb(ctx).ExecContext(ctx, `DELETE FROM stocks`); err != nil {
			return err
		}
		if err := r.insertStocks(ctx, stocks); err != nil {
			return err
		}
		return r.insertDailyData(ctx, history)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return fmt.Errorf("%w: %s", repository.ErrAlreadyExists, pgErr.Detail)
			}
		}
		return err
	}

	return nil
}

func (r *Postgres) insertStocks(ctx context.Context, stocks []dbModel.Stock) error {
	for start := 0; start < len(stocks); start += insertBatchSize {
		batch := stocks[start:min(start+insertBatchSize, len(stocks))]

		sb := strings.Builder{}
		args := make([]any, 0, len(batch)*4)
		sb.WriteString(`INSERT INTO stocks (symbol, name, shares, ordinal) VALUES `)

		for i, stock := range batch {
			args = append(args, stock.Symbol, stock.Name, stock.Shares, stock.Ordinal)

			n := i*4 + 1
			sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d)", n, n+1, n+2, n+3))

			if i < len(batch)-1 {
				sb.WriteString(",")
			}
		}

		if _, err := r.txOrDb(ctx).ExecContext(ctx, sb.String(), args...); err != nil {
			return err
		}
	}

	return nil
}

func (r *Postgres) insertDailyData(ctx context.Context, history []dbModel.DailyData) error {
	for start := 0; start < len(history); start += insertBatchSize {
		batch := history[start:min(start+insertBatchSize, len(history))]

		sb := strings.Builder{}
		args := make([]any, 0, len(batch)*5)
		sb.WriteString(`INSERT INTO daily_data (symbol, trade_date, close, volume, ordinal) VALUES `)

		for i, row := range batch {
			args = append(args, row.Symbol, row.TradeDate, row.Close, row.Volume, row.Ordinal)

			n := i*5 + 1
			sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", n, n+1, n+2, n+3, n+4))

			if i < len(batch)-1 {
				sb.WriteString(",")
			}
		}

		if _, err := r.txOrDb(ctx).ExecContext(ctx, sb.String(), args...); err != nil {
			return err
		}
	}

	return nil
}
