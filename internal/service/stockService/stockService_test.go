package stockService

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KotFed0t/stock_manager/config"
	"github.com/KotFed0t/stock_manager/internal/externalApi"
	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/KotFed0t/stock_manager/internal/model/moexModel"
	"github.com/KotFed0t/stock_manager/internal/service"
	"github.com/shopspring/decimal"
)

type fakeGateway struct {
	stored  *model.Portfolio
	loadErr error
	saveErr error
}

func (g *fakeGateway) CreateStore(ctx context.Context) error {
	if g.stored == nil {
		g.stored = model.NewPortfolio()
	}
	return nil
}

func (g *fakeGateway) LoadAll(ctx context.Context) (*model.Portfolio, error) {
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	return g.stored.Clone(), nil
}

func (g *fakeGateway) SaveAll(ctx context.Context, p *model.Portfolio) error {
	if g.saveErr != nil {
		return g.saveErr
	}
	g.stored = p.Clone()
	return nil
}

type fakeMoex struct {
	mu      sync.Mutex
	history map[string][]model.DailyData
	fail    map[string]error
	calls   int
}

func (m *fakeMoex) FetchRange(ctx context.Context, symbol string, from, to time.Time) ([]model.DailyData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.fail[symbol]; err != nil {
		return nil, err
	}
	return m.history[symbol], nil
}

func (m *fakeMoex) GetSecurityInfo(ctx context.Context, ticker string) (moexModel.SecurityInfo, error) {
	if ticker == "SBER" {
		return moexModel.SecurityInfo{Ticker: ticker, Shortname: "Сбербанк"}, nil
	}
	return moexModel.SecurityInfo{}, externalApi.ErrNotFound
}

type fakeCache struct {
	mu      sync.Mutex
	history map[string][]model.DailyData
	set     chan string
}

func (c *fakeCache) GetHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.DailyData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.history[symbol]
	if !ok {
		return nil, errors.New("miss")
	}
	return h, nil
}

func (c *fakeCache) SetHistory(ctx context.Context, symbol string, from, to time.Time, history []model.DailyData) error {
	c.mu.Lock()
	c.history[symbol] = history
	c.mu.Unlock()
	c.set <- symbol
	return nil
}

type fakeGenerator struct {
	stocks []*model.Stock
}

func (g *fakeGenerator) Generate(ctx context.Context, stocks []*model.Stock) ([]byte, string, error) {
	g.stocks = stocks
	return []byte("xlsx"), ".xlsx", nil
}

type fakeCloud struct {
	uploaded string
}

func (c *fakeCloud) UploadFile(ctx context.Context, reader io.Reader, filename string) (string, error) {
	b, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	c.uploaded = filename + ":" + string(b)
	return "https://example.com/" + filename, nil
}

func (c *fakeCloud) DeleteOldFiles(ctx context.Context) error { return nil }

func day(s string) time.Time {
	t, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func sample(t *testing.T, date, closePrice string, volume int64) model.DailyData {
	t.Helper()
	d, err := model.NewDailyData(day(date), decimal.RequireFromString(closePrice), volume)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newTestService(t *testing.T) (*StockService, *fakeGateway, *fakeMoex) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Jobs.RefreshHistoryDays = 7

	gateway := &fakeGateway{}
	moex := &fakeMoex{history: map[string][]model.DailyData{}, fail: map[string]error{}}
	s := New(cfg, gateway, moex, nil, &fakeGenerator{}, nil)
	s.now = func() time.Time { return day("2024-01-10") }
	return s, gateway, moex
}

func mustAdd(t *testing.T, s *StockService, symbol string, shares int64) {
	t.Helper()
	if _, err := s.AddStock(context.Background(), symbol, symbol+" name", decimal.NewFromInt(shares)); err != nil {
		t.Fatal(err)
	}
}

func TestStockOperations(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	mustAdd(t, s, "MSFT", 10)
	mustAdd(t, s, "AAPL", 5)

	if _, err := s.AddStock(ctx, "AAPL", "dup", decimal.NewFromInt(1)); !errors.Is(err, model.ErrDuplicateSymbol) {
		t.Errorf("expected ErrDuplicateSymbol, got %v", err)
	}

	stock, err := s.Buy(ctx, "AAPL", decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if !stock.Shares().Equal(decimal.NewFromInt(8)) {
		t.Errorf("expected 8 shares, got %s", stock.Shares())
	}

	if _, err = s.Sell(ctx, "AAPL", decimal.NewFromInt(9)); !errors.Is(err, model.ErrInsufficientShares) {
		t.Errorf("expected ErrInsufficientShares, got %v", err)
	}
	if _, err = s.Sell(ctx, "GOOG", decimal.NewFromInt(1)); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// возвращается копия
	if err = stock.Buy(decimal.NewFromInt(100)); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetStock(ctx, "AAPL")
	if !got.Shares().Equal(decimal.NewFromInt(8)) {
		t.Errorf("service state changed through a returned stock: %s", got.Shares())
	}

	list := s.List(ctx)
	if len(list) != 2 || list[0].Symbol() != "AAPL" || list[1].Symbol() != "MSFT" {
		t.Errorf("expected sorted list, got %v", list)
	}

	if err = s.DeleteStock(ctx, "MSFT"); err != nil {
		t.Fatalf("DeleteStock: %v", err)
	}
	if err = s.DeleteStock(ctx, "MSFT"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if symbols := s.Symbols(ctx); len(symbols) != 1 || symbols[0] != "AAPL" {
		t.Errorf("unexpected symbols %v", symbols)
	}
}

func TestConcurrentBuys(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)
	mustAdd(t, s, "AAPL", 0)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Buy(ctx, "AAPL", decimal.NewFromInt(2)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	stock, _ := s.GetStock(ctx, "AAPL")
	if !stock.Shares().Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected 100 shares, got %s", stock.Shares())
	}
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s, gateway, _ := newTestService(t)

	if err := s.CreateStore(ctx); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, s, "MSFT", 10)
	mustAdd(t, s, "AAPL", 5)
	if err := s.AddDailyData(ctx, "AAPL", day("2024-01-02"), decimal.NewFromInt(100), 10); err != nil {
		t.Fatal(err)
	}

	if n, err := s.Save(ctx); err != nil || n != 2 {
		t.Fatalf("Save: %d %v", n, err)
	}

	if err := s.DeleteStock(ctx, "AAPL"); err != nil {
		t.Fatal(err)
	}

	if n, err := s.Load(ctx); err != nil || n != 2 {
		t.Fatalf("Load: %d %v", n, err)
	}
	stock, err := s.GetStock(ctx, "AAPL")
	if err != nil {
		t.Fatalf("expected AAPL restored: %v", err)
	}
	if stock.Len() != 1 {
		t.Errorf("expected restored history, got %d", stock.Len())
	}

	gateway.loadErr = errors.New("disk on fire")
	if _, err = s.Load(ctx); !errors.Is(err, service.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
	if _, err = s.GetStock(ctx, "AAPL"); err != nil {
		t.Errorf("failed load must keep the working portfolio: %v", err)
	}

	gateway.saveErr = errors.New("disk on fire")
	if _, err = s.Save(ctx); !errors.Is(err, service.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestFetchHistoryAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s, _, moex := newTestService(t)
	mustAdd(t, s, "AAPL", 1)
	mustAdd(t, s, "MSFT", 1)

	moex.history["AAPL"] = []model.DailyData{sample(t, "2024-01-02", "100", 1)}
	moex.fail["MSFT"] = model.ErrSourceUnavailable

	if _, err := s.FetchHistory(ctx, day("2024-01-01"), day("2024-01-10")); !errors.Is(err, model.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if stock, _ := s.GetStock(ctx, "AAPL"); stock.Len() != 0 {
		t.Errorf("expected no history merged, got %d", stock.Len())
	}

	delete(moex.fail, "MSFT")
	moex.history["MSFT"] = []model.DailyData{
		sample(t, "2024-01-02", "10", 1),
		sample(t, "2024-01-02", "11", 1),
	}
	if _, err := s.FetchHistory(ctx, day("2024-01-01"), day("2024-01-10")); !errors.Is(err, model.ErrDuplicateDate) {
		t.Fatalf("expected ErrDuplicateDate, got %v", err)
	}
	if stock, _ := s.GetStock(ctx, "AAPL"); stock.Len() != 0 {
		t.Errorf("expected no history merged, got %d", stock.Len())
	}

	moex.history["MSFT"] = moex.history["MSFT"][:1]
	added, err := s.FetchHistory(ctx, day("2024-01-01"), day("2024-01-10"))
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if added != 2 {
		t.Errorf("expected 2 added, got %d", added)
	}

	// повторная загрузка не дублирует даты
	if added, _ = s.FetchHistory(ctx, day("2024-01-01"), day("2024-01-10"), "AAPL"); added != 0 {
		t.Errorf("expected 0 added on refetch, got %d", added)
	}

	if _, err = s.FetchHistory(ctx, day("2024-01-10"), day("2024-01-01")); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err = s.FetchHistory(ctx, day("2024-01-01"), day("2024-01-10"), "GOOG"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchHistoryUsesCache(t *testing.T) {
	ctx := context.Background()
	s, _, moex := newTestService(t)
	cache := &fakeCache{history: map[string][]model.DailyData{}, set: make(chan string, 1)}
	s.cache = cache
	mustAdd(t, s, "AAPL", 1)

	moex.history["AAPL"] = []model.DailyData{sample(t, "2024-01-02", "100", 1)}

	if _, err := s.FetchHistory(ctx, day("2024-01-01"), day("2024-01-10")); err != nil {
		t.Fatal(err)
	}

	select {
	case symbol := <-cache.set:
		if symbol != "AAPL" {
			t.Errorf("unexpected cached symbol %s", symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("history was not cached")
	}

	moex.fail["AAPL"] = model.ErrSourceUnavailable
	if _, err := s.FetchHistory(ctx, day("2024-01-01"), day("2024-01-10")); err != nil {
		t.Fatalf("expected cache hit, got %v", err)
	}
	if moex.calls != 1 {
		t.Errorf("expected one source call, got %d", moex.calls)
	}
}

func TestImportHistory(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)
	mustAdd(t, s, "AAPL", 1)

	bad := "Date,Close,Volume\n2024-01-02,100,1\n2024-01-03,oops,1\n"
	if _, err := s.ImportHistory(ctx, "AAPL", strings.NewReader(bad)); !errors.Is(err, model.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
	if stock, _ := s.GetStock(ctx, "AAPL"); stock.Len() != 0 {
		t.Errorf("malformed import must not change history, got %d", stock.Len())
	}

	good := "Date,Close,Volume\n2024-01-03,101,1\n2024-01-02,100,1\n"
	added, err := s.ImportHistory(ctx, "AAPL", strings.NewReader(good))
	if err != nil || added != 2 {
		t.Fatalf("ImportHistory: %d %v", added, err)
	}
	stock, _ := s.GetStock(ctx, "AAPL")
	if h := stock.History(); !h[0].Date().Equal(day("2024-01-02")) {
		t.Errorf("expected sorted history, got %v", h)
	}

	if _, err = s.ImportHistory(ctx, "GOOG", strings.NewReader(good)); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReportsAndWorkbooks(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	if _, _, err := s.ExportWorkbook(ctx); !errors.Is(err, service.ErrEmptyPortfolio) {
		t.Errorf("expected ErrEmptyPortfolio, got %v", err)
	}

	mustAdd(t, s, "AAPL", 1)
	if _, _, err := s.Chart(ctx, "AAPL"); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty history, got %v", err)
	}

	if err := s.AddDailyData(ctx, "AAPL", day("2024-01-02"), decimal.NewFromInt(100), 10); err != nil {
		t.Fatal(err)
	}

	text, err := s.Report(ctx, "AAPL")
	if err != nil || !strings.Contains(text, "AAPL") {
		t.Errorf("unexpected report %q, %v", text, err)
	}

	series, err := s.ChartSeries(ctx, "AAPL")
	if err != nil || series.Len() != 1 {
		t.Errorf("unexpected series %v, %v", series, err)
	}

	_, filename, err := s.Chart(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Chart: %v", err)
	}
	if filename != "AAPL_2024-01-10_000000.xlsx" {
		t.Errorf("unexpected filename %q", filename)
	}

	fileBytes, filename, err := s.ExportWorkbook(ctx)
	if err != nil {
		t.Fatalf("ExportWorkbook: %v", err)
	}

	if _, err = s.Upload(ctx, fileBytes, filename); !errors.Is(err, service.ErrUploadDisabled) {
		t.Errorf("expected ErrUploadDisabled, got %v", err)
	}

	cloud := &fakeCloud{}
	s.cloud = cloud
	link, err := s.Upload(ctx, fileBytes, filename)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if link != "https://example.com/"+filename || cloud.uploaded != filename+":xlsx" {
		t.Errorf("unexpected upload %q %q", link, cloud.uploaded)
	}
}

func TestResolveName(t *testing.T) {
	s, _, _ := newTestService(t)
	if got := s.ResolveName(context.Background(), "SBER"); got != "Сбербанк" {
		t.Errorf("expected exchange name, got %q", got)
	}
	if got := s.ResolveName(context.Background(), "XXXX"); got != "XXXX" {
		t.Errorf("expected symbol fallback, got %q", got)
	}
}

func TestRefreshHistory(t *testing.T) {
	ctx := context.Background()
	s, _, moex := newTestService(t)

	if err := s.RefreshHistory(ctx); err != nil {
		t.Errorf("empty portfolio refresh must be a no-op, got %v", err)
	}

	mustAdd(t, s, "AAPL", 1)
	moex.history["AAPL"] = []model.DailyData{sample(t, "2024-01-09", "100", 1)}
	if err := s.RefreshHistory(ctx); err != nil {
		t.Fatalf("RefreshHistory: %v", err)
	}
	if stock, _ := s.GetStock(ctx, "AAPL"); stock.Len() != 1 {
		t.Errorf("expected refreshed history, got %d", stock.Len())
	}
}
