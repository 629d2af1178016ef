// Package file keeps the portfolio as a single JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/KotFed0t/stock_manager/utils"
	"github.com/shopspring/decimal"
)

type document struct {
	Stocks []stockRecord `json:"stocks"`
}

type stockRecord struct {
	Symbol  string            `json:"symbol"`
	Name    string            `json:"name"`
	Shares  decimal.Decimal   `json:"shares"`
	History []dailyDataRecord `json:"history"`
}

type dailyDataRecord struct {
	Date   string          `json:"date"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// CreateStore writes an empty document if the file does not exist yet.
func (s *Store) CreateStore(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "file.Store.CreateStore"

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		slog.Error("can't stat store file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	slog.Info("creating store file", slog.String("rqID", rqID), slog.String("op", op), slog.String("path", s.path))
	return s.write(document{Stocks: []stockRecord{}})
}

func (s *Store) LoadAll(ctx context.Context) (*model.Portfolio, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "file.Store.LoadAll"

	raw, err := os.ReadFile(s.path)
	if err != nil {
		slog.Error("can't read store file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	var doc document
	if err = json.Unmarshal(raw, &doc); err != nil {
		slog.Error("can't unmarshall store file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%w: %s: %v", model.ErrParse, s.path, err)
	}

	portfolio := model.NewPortfolio()
	for _, rec := range doc.Stocks {
		stock, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		if err = portfolio.Attach(stock); err != nil {
			return nil, err
		}
	}

	slog.Debug("LoadAll completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("stocks", portfolio.Len()))

	return portfolio, nil
}

func (s *Store) SaveAll(ctx context.Context, p *model.Portfolio) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "file.Store.SaveAll"

	doc := document{Stocks: make([]stockRecord, 0, p.Len())}
	for _, stock := range p.Stocks() {
		doc.Stocks = append(doc.Stocks, fromModel(stock))
	}

	if err := s.write(doc); err != nil {
		slog.Error("can't write store file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SaveAll completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("stocks", p.Len()))

	return nil
}

// write replaces the file atomically through a temp file in the same directory.
func (s *Store) write(doc document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), s.path)
}

func fromModel(stock *model.Stock) stockRecord {
	history := stock.History()
	rec := stockRecord{
		Symbol:  stock.Symbol(),
		Name:    stock.Name(),
		Shares:  stock.Shares(),
		History: make([]dailyDataRecord, 0, len(history)),
	}
	for _, d := range history {
		rec.History = append(rec.History, dailyDataRecord{
			Date:   d.Date().Format(model.DateLayout),
			Close:  d.Close(),
			Volume: d.Volume(),
		})
	}
	return rec
}

func (rec stockRecord) toModel() (*model.Stock, error) {
	stock, err := model.NewStock(rec.Symbol, rec.Name, rec.Shares)
	if err != nil {
		return nil, fmt.Errorf("stock %q: %w", rec.Symbol, err)
	}

	history := make([]model.DailyData, 0, len(rec.History))
	for _, h := range rec.History {
		date, err := time.Parse(model.DateLayout, h.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: stock %q date %q", model.ErrParse, rec.Symbol, h.Date)
		}
		d, err := model.NewDailyData(date, h.Close, h.Volume)
		if err != nil {
			return nil, fmt.Errorf("stock %q: %w", rec.Symbol, err)
		}
		history = append(history, d)
	}

	if _, err = stock.MergeHistory(history); err != nil {
		return nil, fmt.Errorf("stock %q: %w", rec.Symbol, err)
	}

	return stock, nil
}
