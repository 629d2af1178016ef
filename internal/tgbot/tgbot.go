package tgbot

import (
	"log/slog"

	"github.com/KotFed0t/stock_manager/config"
	"github.com/KotFed0t/stock_manager/internal/model/tg/tgCallback"
	"github.com/KotFed0t/stock_manager/internal/transport/telegram"
	customMW "github.com/KotFed0t/stock_manager/internal/transport/telegram/middleware"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type TGBot struct {
	bot  *tele.Bot
	ctrl *telegram.Controller
	cfg  *config.Config
}

func New(cfg *config.Config, ctrl *telegram.Controller) (*TGBot, error) {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		return nil, err
	}

	return &TGBot{bot: b, ctrl: ctrl, cfg: cfg}, nil
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger(), customMW.Whitelist(b.cfg.Telegram.AllowedChatIDs))

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	// ввод количества акций после кнопок покупки/продажи
	b.bot.Handle(tele.OnText, b.ctrl.ProcessText)
	b.bot.Handle(tele.OnDocument, b.ctrl.ProcessImport)

	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/help", b.ctrl.Start)
	b.bot.Handle("/list", b.ctrl.List)
	b.bot.Handle("/add", b.ctrl.AddStock)
	b.bot.Handle("/buy", b.ctrl.Buy)
	b.bot.Handle("/sell", b.ctrl.Sell)
	b.bot.Handle("/delete", b.ctrl.DeleteStock)
	b.bot.Handle("/history", b.ctrl.History)
	b.bot.Handle("/report", b.ctrl.Report)
	b.bot.Handle("/chart", b.ctrl.Chart)
	b.bot.Handle("/adddata", b.ctrl.AddDailyData)
	b.bot.Handle("/fetch", b.ctrl.Fetch)
	b.bot.Handle("/import", b.ctrl.InitImport)
	b.bot.Handle("/export", b.ctrl.Export)
	b.bot.Handle("/load", b.ctrl.Load)
	b.bot.Handle("/save", b.ctrl.Save)

	b.handleCallback(tgCallback.SelectStock, b.ctrl.SelectStock)
	b.handleCallback(tgCallback.BackToList, b.ctrl.List)
	b.handleCallback(tgCallback.Report, b.ctrl.Report)
	b.handleCallback(tgCallback.Chart, b.ctrl.Chart)
	b.handleCallback(tgCallback.History, b.ctrl.History)
	b.handleCallback(tgCallback.BuyStock, b.ctrl.Buy)
	b.handleCallback(tgCallback.SellStock, b.ctrl.Sell)
	b.handleCallback(tgCallback.ImportCSV, b.ctrl.InitImport)
	b.handleCallback(tgCallback.DeleteStock, b.ctrl.DeleteStock)
}

func (b *TGBot) handleCallback(unique string, h tele.HandlerFunc) {
	b.bot.Handle(&tele.Btn{Unique: unique}, func(c tele.Context) error {
		defer func() {
			_ = c.Respond()
		}()
		return h(c)
	})
}
