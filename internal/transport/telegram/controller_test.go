package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/KotFed0t/stock_manager/config"
	"github.com/KotFed0t/stock_manager/data/session"
	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/KotFed0t/stock_manager/internal/service/stockService"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

type memorySession struct {
	mu       sync.Mutex
	sessions map[string]model.Session
}

func (m *memorySession) GetSession(ctx context.Context, key string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return model.Session{}, session.ErrNotFound
	}
	return s, nil
}

func (m *memorySession) SetSession(ctx context.Context, key string, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = s
	return nil
}

// fakeTelegram records texts sent through the bot api.
type fakeTelegram struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	params := map[string]any{}
	_ = json.Unmarshal(body, &params)

	f.mu.Lock()
	if text, ok := params["text"].(string); ok {
		f.texts = append(f.texts, text)
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`)
}

func (f *fakeTelegram) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type testEnv struct {
	ctrl    *Controller
	bot     *tele.Bot
	tg      *fakeTelegram
	service *stockService.StockService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tg := &fakeTelegram{}
	srv := httptest.NewServer(tg)
	t.Cleanup(srv.Close)

	b, err := tele.NewBot(tele.Settings{URL: srv.URL, Token: "test", Offline: true})
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	srvc := stockService.New(cfg, nil, nil, nil, nil, nil)
	ctrl := NewController(cfg, srvc, &memorySession{sessions: map[string]model.Session{}})

	return &testEnv{ctrl: ctrl, bot: b, tg: tg, service: srvc}
}

func (e *testEnv) message(text string) tele.Context {
	payload := ""
	if strings.HasPrefix(text, "/") {
		if _, rest, ok := strings.Cut(text, " "); ok {
			payload = rest
		}
	}
	return e.bot.NewContext(tele.Update{
		Message: &tele.Message{Text: text, Payload: payload, Chat: &tele.Chat{ID: 1}},
	})
}

func TestAddBuySellFlow(t *testing.T) {
	env := newTestEnv(t)

	if err := env.ctrl.AddStock(env.message("/add aapl 10 Apple Inc")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.tg.last(), "Apple Inc - 10 Shares") {
		t.Errorf("unexpected reply %q", env.tg.last())
	}

	if err := env.ctrl.Buy(env.message("/buy 5")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.tg.last(), "Apple Inc - 15 Shares") {
		t.Errorf("unexpected reply %q", env.tg.last())
	}

	// количество вводится отдельным сообщением
	if err := env.ctrl.Sell(env.message("/sell")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.tg.last(), "Enter the number of shares of AAPL") {
		t.Errorf("unexpected reply %q", env.tg.last())
	}
	if err := env.ctrl.ProcessText(env.message("20")); err != nil {
		t.Fatal(err)
	}
	if env.tg.last() != "⚠️ not enough shares to sell" {
		t.Errorf("unexpected reply %q", env.tg.last())
	}

	stock, err := env.service.GetStock(context.Background(), "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if !stock.Shares().Equal(decimal.NewFromInt(15)) {
		t.Errorf("expected 15 shares, got %s", stock.Shares())
	}

	// после ответа ожидание сброшено
	if err = env.ctrl.ProcessText(env.message("1")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.tg.last(), "enter one of the commands") {
		t.Errorf("unexpected reply %q", env.tg.last())
	}
}

func TestCommandsRequireSelection(t *testing.T) {
	env := newTestEnv(t)

	for _, h := range []tele.HandlerFunc{env.ctrl.Report, env.ctrl.History, env.ctrl.DeleteStock, env.ctrl.Chart} {
		if err := h(env.message("/report")); err != nil {
			t.Fatal(err)
		}
		if env.tg.last() != selectStockMsg {
			t.Errorf("unexpected reply %q", env.tg.last())
		}
	}
}

func TestAddDailyDataAndHistory(t *testing.T) {
	env := newTestEnv(t)

	if err := env.ctrl.AddStock(env.message("/add MSFT 1 Microsoft")); err != nil {
		t.Fatal(err)
	}
	if err := env.ctrl.AddDailyData(env.message("/adddata 2024-01-02 370.5 25000")); err != nil {
		t.Fatal(err)
	}
	if env.tg.last() != "✅ MSFT: added 2024-01-02" {
		t.Errorf("unexpected reply %q", env.tg.last())
	}

	if err := env.ctrl.AddDailyData(env.message("/adddata 2024-01-02 371 1")); err != nil {
		t.Fatal(err)
	}
	if env.tg.last() != "⚠️ data for this date already exists" {
		t.Errorf("unexpected reply %q", env.tg.last())
	}

	if err := env.ctrl.History(env.message("/history")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.tg.last(), "01/02/24   $370.50   25000") {
		t.Errorf("unexpected reply %q", env.tg.last())
	}

	if err := env.ctrl.List(env.message("/list")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.tg.last(), "1. MSFT (Microsoft) - 1 shares") {
		t.Errorf("unexpected reply %q", env.tg.last())
	}
}
