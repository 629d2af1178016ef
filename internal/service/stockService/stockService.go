package stockService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/KotFed0t/stock_manager/config"
	"github.com/KotFed0t/stock_manager/internal/externalApi"
	"github.com/KotFed0t/stock_manager/internal/importer/csvImporter"
	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/KotFed0t/stock_manager/internal/model/moexModel"
	"github.com/KotFed0t/stock_manager/internal/report"
	"github.com/KotFed0t/stock_manager/internal/service"
	"github.com/KotFed0t/stock_manager/utils"
	"github.com/shopspring/decimal"
)

type Gateway interface {
	CreateStore(ctx context.Context) error
	LoadAll(ctx context.Context) (*model.Portfolio, error)
	SaveAll(ctx context.Context, p *model.Portfolio) error
}

type MoexApi interface {
	FetchRange(ctx context.Context, symbol string, from, to time.Time) ([]model.DailyData, error)
	GetSecurityInfo(ctx context.Context, ticker string) (moexModel.SecurityInfo, error)
}

type Cache interface {
	GetHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.DailyData, error)
	SetHistory(ctx context.Context, symbol string, from, to time.Time, history []model.DailyData) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, stocks []*model.Stock) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
	DeleteOldFiles(ctx context.Context) error
}

// StockService owns the working portfolio. All reads and mutations go through one mutex;
// returned stocks are copies.
type StockService struct {
	mu        sync.Mutex
	portfolio *model.Portfolio

	cfg       *config.Config
	gateway   Gateway
	moexApi   MoexApi
	cache     Cache
	generator ReportGenerator
	cloud     CloudStorage

	now func() time.Time
}

// New creates a service with an empty portfolio. cache and cloud may be nil.
func New(cfg *config.Config, gateway Gateway, moexApi MoexApi, cache Cache, generator ReportGenerator, cloud CloudStorage) *StockService {
	return &StockService{
		portfolio: model.NewPortfolio(),
		cfg:       cfg,
		gateway:   gateway,
		moexApi:   moexApi,
		cache:     cache,
		generator: generator,
		cloud:     cloud,
		now:       time.Now,
	}
}

func (s *StockService) CreateStore(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockService.CreateStore"

	slog.Debug("CreateStore start", slog.String("rqID", rqID), slog.String("op", op))

	if err := s.gateway.CreateStore(ctx); err != nil {
		slog.Error("got error from gateway.CreateStore", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return fmt.Errorf("%w: %w", service.ErrStorageUnavailable, err)
	}

	return nil
}

// Load replaces the working portfolio with the stored one, sorted by symbol.
func (s *StockService) Load(ctx context.Context) (stocks int, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockService.Load"

	slog.Debug("Load start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("Load finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("stocks", stocks))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.gateway.LoadAll(ctx)
	if err != nil {
		slog.Error("got error from gateway.LoadAll", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, fmt.Errorf("%w: %w", service.ErrStorageUnavailable, err)
	}

	p.SortBySymbol()
	s.portfolio = p

	return p.Len(), nil
}

func (s *StockService) Save(ctx context.Context) (stocks int, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockService.Save"

	slog.Debug("Save start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("Save finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("stocks", stocks))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.gateway.SaveAll(ctx, s.portfolio); err != nil {
		slog.Error("got error from gateway.SaveAll", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, fmt.Errorf("%w: %w", service.ErrStorageUnavailable, err)
	}

	return s.portfolio.Len(), nil
}

// ResolveName returns the exchange short name of symbol, or the symbol itself when the exchange doesn't know it.
func (s *StockService) ResolveName(ctx context.Context, symbol string) string {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockService.ResolveName"

	info, err := s.moexApi.GetSecurityInfo(ctx, symbol)
	if err != nil {
		if !errors.Is(err, externalApi.ErrNotFound) {
			slog.Warn("can't get security info", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		return symbol
	}
	if info.Shortname == "" {
		return symbol
	}

	return info.Shortname
}

func (s *StockService) AddStock(ctx context.Context, symbol, name string, shares decimal.Decimal) (*model.Stock, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockService.AddStock"

	slog.Debug("AddStock start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	s.mu.Lock()
	defer s.mu.Unlock()

	stock, err := s.portfolio.AddStock(symbol, name, shares)
	if err != nil {
		slog.Warn("can't add stock", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return stock.Clone(), nil
}

func (s *StockService) Buy(ctx context.Context, symbol string, amount decimal.Decimal) (*model.Stock, error) {
	return s.updateShares(ctx, "StockService.Buy", symbol, func(stock *model.Stock) error {
		return stock.Buy(amount)
	})
}

func (s *StockService) Sell(ctx context.Context, symbol string, amount decimal.Decimal) (*model.Stock, error) {
	return s.updateShares(ctx, "StockService.Sell", symbol, func(stock *model.Stock) error {
		return stock.Sell(amount)
	})
}

func (s *StockService) updateShares(ctx context.Context, op, symbol string, fn func(stock *model.Stock) error) (*model.Stock, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("updateShares start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	s.mu.Lock()
	defer s.mu.Unlock()

	stock, ok := s.portfolio.FindBySymbol(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, symbol)
	}

	if err := fn(stock); err != nil {
		slog.Warn("can't update shares", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return stock.Clone(), nil
}

func (s *StockService) DeleteStock(ctx context.Context, symbol string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockService.DeleteStock"

	slog.Debug("DeleteStock start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.portfolio.DeleteStock(symbol)
}

// List returns copies of all stocks sorted by symbol.
func (s *StockService) List(ctx context.Context) []*model.Stock {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]*model.Stock, 0, s.portfolio.Len())
	for stock := range s.portfolio.SortedSymbols() {
		res = append(res, stock.Clone())
	}
	return res
}

func (s *StockService) GetStock(ctx context.Context, symbol string) (*model.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stock, ok := s.portfolio.FindBySymbol(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, symbol)
	}
	return stock.Clone(), nil
}

func (s *StockService) AddDailyData(ctx context.Context, symbol string, date time.Time, closePrice decimal.Decimal, volume int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockService.AddDailyData"

	slog.Debug("AddDailyData start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	s.mu.Lock()
	defer s.mu.Unlock()

	stock, ok := s.portfolio.FindBySymbol(symbol)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrNotFound, symbol)
	}

	return stock.AddDailyData(date, closePrice, volume)
}

// FetchHistory retrieves [from, to] for the given symbols, or for every stock when none are given,
// and merges it into the portfolio. Nothing is merged unless every symbol was fetched and merged.
func (s *StockService) FetchHistory(ctx context.Context, from, to time.Time, symbols ...string) (added int, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockService.FetchHistory"

	from, to = model.TruncateDate(from), model.TruncateDate(to)
	if to.Before(from) {
		return 0, fmt.Errorf("%w: from %s is after to %s", model.ErrInvalidArgument, from.Format(model.DateLayout), to.Format(model.DateLayout))
	}

	slog.Debug("FetchHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.Any("symbols", symbols))
	defer func() {
		slog.Debug("FetchHistory finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("added", added))
	}()

	if len(symbols) == 0 {
		symbols = s.symbols()
	} else if err = s.checkSymbols(symbols); err != nil {
		return 0, err
	}

	if len(symbols) == 0 {
		return 0, service.ErrEmptyPortfolio
	}

	// сеть вне мьютекса
	batches := make(map[string][]model.DailyData, len(symbols))
	for _, symbol := range symbols {
		history, err := s.getHistory(ctx, symbol, from, to)
		if err != nil {
			return 0, err
		}
		batches[symbol] = history
	}

	return s.merge(ctx, batches)
}

// ImportHistory parses a delimited file and merges its rows into the stock's history.
func (s *StockService) ImportHistory(ctx context.Context, symbol string, r io.Reader) (added int, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockService.ImportHistory"

	slog.Debug("ImportHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	if err = s.checkSymbols([]string{symbol}); err != nil {
		return 0, err
	}

	history, err := csvImporter.Import(r)
	if err != nil {
		slog.Warn("can't import history", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	return s.merge(ctx, map[string][]model.DailyData{symbol: history})
}

func (s *StockService) ImportHistoryFile(ctx context.Context, symbol, path string) (int, error) {
	if err := s.checkSymbols([]string{symbol}); err != nil {
		return 0, err
	}

	history, err := csvImporter.ImportFile(path)
	if err != nil {
		return 0, err
	}

	return s.merge(ctx, map[string][]model.DailyData{symbol: history})
}

// merge applies all batches to a copy of the portfolio and swaps it in only when every batch fits.
func (s *StockService) merge(ctx context.Context, batches map[string][]model.DailyData) (added int, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockService.merge"

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.portfolio.Clone()
	for symbol, batch := range batches {
		stock, ok := next.FindBySymbol(symbol)
		if !ok {
			// акцию удалили, пока шла загрузка
			slog.Warn("stock deleted during fetch", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
			continue
		}

		n, err := stock.MergeHistory(batch)
		if err != nil {
			slog.Warn("can't merge history", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
			return 0, fmt.Errorf("%s: %w", symbol, err)
		}
		stock.SortHistory()
		added += n
	}

	s.portfolio = next

	return added, nil
}

func (s *StockService) getHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.DailyData, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockService.getHistory"

	if s.cache != nil {
		history, err := s.cache.GetHistory(ctx, symbol, from, to)
		if err == nil {
			slog.Debug("got history from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
			return history, nil
		}
		slog.Debug("can't get history from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	history, err := s.moexApi.FetchRange(ctx, symbol, from, to)
	if err != nil {
		slog.Error("got error from moexApi.FetchRange", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		return nil, err
	}

	if s.cache != nil {
		go s.cache.SetHistory(context.WithoutCancel(ctx), symbol, from, to, history)
	}

	return history, nil
}

// Report is the plain-text performance report of the stock.
func (s *StockService) Report(ctx context.Context, symbol string) (string, error) {
	stock, err := s.GetStock(ctx, symbol)
	if err != nil {
		return "", err
	}
	return report.Text(stock), nil
}

// ReportMarkdown is the markdown performance report of the stock.
func (s *StockService) ReportMarkdown(ctx context.Context, symbol string) (string, error) {
	stock, err := s.GetStock(ctx, symbol)
	if err != nil {
		return "", err
	}
	return report.Markdown(stock), nil
}

func (s *StockService) Summary(ctx context.Context, symbol string) (report.Summary, error) {
	stock, err := s.GetStock(ctx, symbol)
	if err != nil {
		return report.Summary{}, err
	}
	return report.Derive(stock), nil
}

func (s *StockService) ChartSeries(ctx context.Context, symbol string) (report.Series, error) {
	stock, err := s.GetStock(ctx, symbol)
	if err != nil {
		return report.Series{}, err
	}
	return report.ChartSeries(stock), nil
}

// Chart renders the workbook with the price chart of one stock.
func (s *StockService) Chart(ctx context.Context, symbol string) (fileBytes []byte, filename string, err error) {
	stock, err := s.GetStock(ctx, symbol)
	if err != nil {
		return nil, "", err
	}
	if stock.Len() == 0 {
		return nil, "", fmt.Errorf("%w: %s has no history", model.ErrInvalidArgument, symbol)
	}

	return s.generate(ctx, []*model.Stock{stock}, symbol)
}

// ExportWorkbook renders the workbook with every stock.
func (s *StockService) ExportWorkbook(ctx context.Context) (fileBytes []byte, filename string, err error) {
	stocks := s.List(ctx)
	if len(stocks) == 0 {
		return nil, "", service.ErrEmptyPortfolio
	}

	return s.generate(ctx, stocks, "stocks")
}

func (s *StockService) generate(ctx context.Context, stocks []*model.Stock, prefix string) ([]byte, string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockService.generate"

	fileBytes, ext, err := s.generator.Generate(ctx, stocks)
	if err != nil {
		slog.Error("got error from generator.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	return fileBytes, fmt.Sprintf("%s_%s%s", prefix, s.now().Format("2006-01-02_150405"), ext), nil
}

// Upload publishes a generated file and returns its share link.
func (s *StockService) Upload(ctx context.Context, fileBytes []byte, filename string) (string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockService.Upload"

	if s.cloud == nil {
		return "", service.ErrUploadDisabled
	}

	link, err := s.cloud.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
	if err != nil {
		slog.Error("got error from cloud.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	return link, nil
}

// RefreshHistory fetches the last configured days for every stock.
func (s *StockService) RefreshHistory(ctx context.Context) error {
	to := s.now()
	from := to.AddDate(0, 0, -s.cfg.Jobs.RefreshHistoryDays)

	added, err := s.FetchHistory(ctx, from, to)
	if err != nil {
		if errors.Is(err, service.ErrEmptyPortfolio) {
			return nil
		}
		return err
	}

	slog.Info("history refreshed", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.Int("added", added))

	return nil
}

// CleanupReports removes expired uploads. Does nothing when upload is disabled.
func (s *StockService) CleanupReports(ctx context.Context) error {
	if s.cloud == nil {
		return nil
	}
	return s.cloud.DeleteOldFiles(ctx)
}

func (s *StockService) symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]string, 0, s.portfolio.Len())
	for stock := range s.portfolio.SortedSymbols() {
		res = append(res, stock.Symbol())
	}
	return res
}

func (s *StockService) checkSymbols(symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, symbol := range symbols {
		if _, ok := s.portfolio.FindBySymbol(symbol); !ok {
			return fmt.Errorf("%w: %s", model.ErrNotFound, symbol)
		}
	}
	return nil
}

// Symbols returns the symbols of all stocks in alphabetical order.
func (s *StockService) Symbols(ctx context.Context) []string {
	return s.symbols()
}
