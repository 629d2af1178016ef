package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/KotFed0t/stock_manager/config"
	"github.com/KotFed0t/stock_manager/data/session"
	"github.com/KotFed0t/stock_manager/internal/converter/telebotConverter"
	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/KotFed0t/stock_manager/internal/service"
	"github.com/KotFed0t/stock_manager/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const (
	internalErrMsg    = "something went wrong..."
	selectStockMsg    = "select a stock first with /list"
	sessionContextKey = "session"
)

type StockService interface {
	Load(ctx context.Context) (int, error)
	Save(ctx context.Context) (int, error)
	ResolveName(ctx context.Context, symbol string) string
	AddStock(ctx context.Context, symbol, name string, shares decimal.Decimal) (*model.Stock, error)
	Buy(ctx context.Context, symbol string, amount decimal.Decimal) (*model.Stock, error)
	Sell(ctx context.Context, symbol string, amount decimal.Decimal) (*model.Stock, error)
	DeleteStock(ctx context.Context, symbol string) error
	List(ctx context.Context) []*model.Stock
	GetStock(ctx context.Context, symbol string) (*model.Stock, error)
	AddDailyData(ctx context.Context, symbol string, date time.Time, closePrice decimal.Decimal, volume int64) error
	FetchHistory(ctx context.Context, from, to time.Time, symbols ...string) (int, error)
	ImportHistory(ctx context.Context, symbol string, r io.Reader) (int, error)
	Report(ctx context.Context, symbol string) (string, error)
	Chart(ctx context.Context, symbol string) ([]byte, string, error)
	ExportWorkbook(ctx context.Context) ([]byte, string, error)
	Upload(ctx context.Context, fileBytes []byte, filename string) (string, error)
}

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type Controller struct {
	cfg          *config.Config
	stockService StockService
	session      Session
}

func NewController(cfg *config.Config, stockService StockService, session Session) *Controller {
	return &Controller{
		cfg:          cfg,
		stockService: stockService,
		session:      session,
	}
}

func (ctrl *Controller) Start(c tele.Context) error {
	return c.Send(telebotConverter.HelpText)
}

func (ctrl *Controller) List(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	text, markup := telebotConverter.StockListResponse(ctrl.stockService.List(ctx))
	if c.Callback() != nil {
		return c.Edit(text, markup)
	}
	return c.Send(text, markup)
}

// SelectStock запоминает выбранную акцию и показывает ее карточку.
func (ctrl *Controller) SelectStock(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	symbol := c.Data()

	stock, err := ctrl.stockService.GetStock(ctx, symbol)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	if err = ctrl.updateSession(ctx, c, func(s *model.Session) {
		s.Symbol = symbol
		s.Action = model.DefaultAction
	}); err != nil {
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.StockCardResponse(stock)
	if c.Callback() != nil {
		return c.Edit(text, markup)
	}
	return c.Send(text, markup)
}

func (ctrl *Controller) AddStock(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	symbol, shares, name, err := ParseAddArgs(c.Args())
	if err != nil {
		return c.Send(ErrorMessage(err) + "\nusage: /add SYMBOL SHARES [NAME]")
	}
	if name == "" {
		name = ctrl.stockService.ResolveName(ctx, symbol)
	}

	stock, err := ctrl.stockService.AddStock(ctx, symbol, name, shares)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	if err = ctrl.updateSession(ctx, c, func(s *model.Session) {
		s.Symbol = stock.Symbol()
		s.Action = model.DefaultAction
	}); err != nil {
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.StockCardResponse(stock)
	return c.Send(text, markup)
}

func (ctrl *Controller) Buy(c tele.Context) error {
	return ctrl.changeShares(c, commandPayload(c), ctrl.stockService.Buy, model.ExpectingBuyAmount)
}

func (ctrl *Controller) Sell(c tele.Context) error {
	return ctrl.changeShares(c, commandPayload(c), ctrl.stockService.Sell, model.ExpectingSellAmount)
}

// commandPayload is the text after a command, callbacks carry no payload for the user.
func commandPayload(c tele.Context) string {
	if c.Callback() != nil {
		return ""
	}
	return strings.Join(c.Args(), " ")
}

type sharesFn func(ctx context.Context, symbol string, amount decimal.Decimal) (*model.Stock, error)

// changeShares applies amount to the selected stock. Without amount it asks for one.
func (ctrl *Controller) changeShares(c tele.Context, amountText string, fn sharesFn, expecting model.Action) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSession(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}
	if c.Callback() != nil && c.Data() != "" {
		chatSession.Symbol = c.Data()
	}
	if chatSession.Symbol == "" {
		return c.Send(selectStockMsg)
	}

	if strings.TrimSpace(amountText) == "" {
		chatSession.Action = expecting
		if err = ctrl.setSession(ctx, c, chatSession); err != nil {
			return c.Send(internalErrMsg)
		}
		return c.Send(fmt.Sprintf("Enter the number of shares of %s:", chatSession.Symbol))
	}

	amount, err := ParseAmount(amountText)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	stock, err := fn(ctx, chatSession.Symbol, amount)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	text, markup := telebotConverter.StockCardResponse(stock)
	return c.Send(text, markup)
}

func (ctrl *Controller) DeleteStock(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	symbol, err := ctrl.selectedSymbol(ctx, c)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	if err = ctrl.stockService.DeleteStock(ctx, symbol); err != nil {
		return c.Send(ErrorMessage(err))
	}

	if err = ctrl.updateSession(ctx, c, func(s *model.Session) {
		*s = model.Session{}
	}); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(fmt.Sprintf("🗑 %s deleted. Use /save to persist the change.", symbol))
}

func (ctrl *Controller) History(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	stock, err := ctrl.selectedStock(ctx, c)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	return c.Send(telebotConverter.Preformatted(telebotConverter.HistoryText(stock)), tele.ModeMarkdown)
}

func (ctrl *Controller) Report(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	symbol, err := ctrl.selectedSymbol(ctx, c)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	text, err := ctrl.stockService.Report(ctx, symbol)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	return c.Send(telebotConverter.Preformatted(text), tele.ModeMarkdown)
}

func (ctrl *Controller) Chart(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	symbol, err := ctrl.selectedSymbol(ctx, c)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	fileBytes, filename, err := ctrl.stockService.Chart(ctx, symbol)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	return ctrl.sendFile(ctx, c, fileBytes, filename)
}

func (ctrl *Controller) Export(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	fileBytes, filename, err := ctrl.stockService.ExportWorkbook(ctx)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	return ctrl.sendFile(ctx, c, fileBytes, filename)
}

// sendFile uploads the file to the cloud when it is enabled, otherwise sends it as a document.
func (ctrl *Controller) sendFile(ctx context.Context, c tele.Context, fileBytes []byte, filename string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	link, err := ctrl.stockService.Upload(ctx, fileBytes, filename)
	if err == nil {
		return c.Send(fmt.Sprintf("📎 %s\n%s", filename, link))
	}
	if !errors.Is(err, service.ErrUploadDisabled) {
		slog.Warn("upload failed, sending document", slog.String("rqID", rqID), slog.String("err", err.Error()))
	}

	doc := &tele.Document{
		File:     tele.FromReader(bytes.NewReader(fileBytes)),
		FileName: filename,
	}
	return c.Send(doc)
}

func (ctrl *Controller) AddDailyData(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	symbol, err := ctrl.selectedSymbol(ctx, c)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	date, closePrice, volume, err := ParseDailyDataArgs(c.Args())
	if err != nil {
		return c.Send(ErrorMessage(err) + "\nusage: /adddata YYYY-MM-DD CLOSE VOLUME")
	}

	if err = ctrl.stockService.AddDailyData(ctx, symbol, date, closePrice, volume); err != nil {
		return c.Send(ErrorMessage(err))
	}

	return c.Send(fmt.Sprintf("✅ %s: added %s", symbol, date.Format(model.DateLayout)))
}

func (ctrl *Controller) Fetch(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	from, to, err := ParseRangeArgs(c.Args())
	if err != nil {
		return c.Send(ErrorMessage(err) + "\nusage: /fetch YYYY-MM-DD YYYY-MM-DD")
	}

	_ = c.Notify(tele.Typing)

	added, err := ctrl.stockService.FetchHistory(ctx, from, to)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	return c.Send(fmt.Sprintf("✅ retrieved %d new daily samples", added))
}

func (ctrl *Controller) InitImport(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSession(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}
	if c.Callback() != nil && c.Data() != "" {
		chatSession.Symbol = c.Data()
	}
	if chatSession.Symbol == "" {
		return c.Send(selectStockMsg)
	}

	chatSession.Action = model.ExpectingHistoryFile
	if err = ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(fmt.Sprintf("Send a CSV file with Date, Close and Volume columns for %s", chatSession.Symbol))
}

// ProcessImport imports the CSV document sent after /import.
func (ctrl *Controller) ProcessImport(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSession(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}
	if chatSession.Action != model.ExpectingHistoryFile {
		return c.Send("send /import first")
	}

	doc := c.Message().Document
	if doc == nil {
		return c.Send("expected a CSV document")
	}
	if doc.FileSize > int64(ctrl.cfg.Telegram.FileLimitInBytes) {
		return c.Send(fmt.Sprintf("file is too large, limit is %d bytes", ctrl.cfg.Telegram.FileLimitInBytes))
	}

	reader, err := c.Bot().File(&doc.File)
	if err != nil {
		slog.Error("can't download document", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}
	defer reader.Close()

	chatSession.Action = model.DefaultAction
	if err = ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	added, err := ctrl.stockService.ImportHistory(ctx, chatSession.Symbol, reader)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	return c.Send(fmt.Sprintf("✅ %s: imported %d daily samples", chatSession.Symbol, added))
}

// ProcessText handles free text according to the pending session action.
func (ctrl *Controller) ProcessText(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSession(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	var fn sharesFn
	pending := chatSession.Action
	switch pending {
	case model.ExpectingBuyAmount:
		fn = ctrl.stockService.Buy
	case model.ExpectingSellAmount:
		fn = ctrl.stockService.Sell
	default:
		slog.Debug("unexpected chatSession action", slog.String("rqID", rqID), slog.Any("action", chatSession.Action))
		return c.Send("enter one of the commands, /start shows them")
	}

	chatSession.Action = model.DefaultAction
	if err = ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return ctrl.changeShares(c, c.Text(), fn, pending)
}

func (ctrl *Controller) Load(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	n, err := ctrl.stockService.Load(ctx)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	return c.Send(fmt.Sprintf("📂 loaded %d stocks", n))
}

func (ctrl *Controller) Save(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	n, err := ctrl.stockService.Save(ctx)
	if err != nil {
		return c.Send(ErrorMessage(err))
	}

	return c.Send(fmt.Sprintf("💾 saved %d stocks", n))
}

func (ctrl *Controller) selectedSymbol(ctx context.Context, c tele.Context) (string, error) {
	if c.Callback() != nil && c.Data() != "" {
		return c.Data(), nil
	}

	chatSession, err := ctrl.getSession(ctx, c)
	if err != nil {
		return "", err
	}
	if chatSession.Symbol == "" {
		return "", errNoSelection
	}
	return chatSession.Symbol, nil
}

func (ctrl *Controller) selectedStock(ctx context.Context, c tele.Context) (*model.Stock, error) {
	symbol, err := ctrl.selectedSymbol(ctx, c)
	if err != nil {
		return nil, err
	}
	return ctrl.stockService.GetStock(ctx, symbol)
}

// getSession returns the chat session, an absent session is an empty one.
func (ctrl *Controller) getSession(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get(sessionContextKey).(model.Session)
	if ok {
		return chatSession, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession, err := ctrl.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return model.Session{}, nil
		}
		slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Session{}, err
	}

	c.Set(sessionContextKey, chatSession)
	return chatSession, nil
}

func (ctrl *Controller) setSession(ctx context.Context, c tele.Context, chatSession model.Session) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	if err := ctrl.session.SetSession(ctx, strconv.FormatInt(c.Chat().ID, 10), chatSession); err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	c.Set(sessionContextKey, chatSession)
	return nil
}

func (ctrl *Controller) updateSession(ctx context.Context, c tele.Context, fn func(s *model.Session)) error {
	chatSession, err := ctrl.getSession(ctx, c)
	if err != nil {
		return err
	}
	fn(&chatSession)
	return ctrl.setSession(ctx, c, chatSession)
}
