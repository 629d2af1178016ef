package telebotConverter

import (
	"fmt"
	"strings"

	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/KotFed0t/stock_manager/internal/model/tg/tgCallback"
	"github.com/KotFed0t/stock_manager/internal/report"
	tele "gopkg.in/telebot.v4"
)

const HelpText = `📊 Stock manager

/list - stocks in the portfolio
/add SYMBOL SHARES [NAME] - add a stock
/buy N, /sell N - change shares of the selected stock
/delete - delete the selected stock
/history - daily data of the selected stock
/report - performance report of the selected stock
/chart - price chart workbook of the selected stock
/adddata YYYY-MM-DD CLOSE VOLUME - add a daily sample to the selected stock
/fetch FROM TO - retrieve daily data of every stock, dates as YYYY-MM-DD
/import - import a CSV file into the selected stock
/export - workbook with every stock
/load, /save - read or write the stored portfolio`

// btnsInRow is how many symbol buttons fit a keyboard row.
const btnsInRow = 3

func StockListResponse(stocks []*model.Stock) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}

	if len(stocks) == 0 {
		return "📋 Portfolio is empty. Add a stock with /add SYMBOL SHARES [NAME]", markup
	}

	var sb strings.Builder
	sb.WriteString("📋 Portfolio:\n\n")

	rows := make([]tele.Row, 0, len(stocks)/btnsInRow+1)
	btns := make([]tele.Btn, 0, btnsInRow)
	for i, stock := range stocks {
		sb.WriteString(fmt.Sprintf("%d. %s (%s) - %s shares\n", i+1, stock.Symbol(), stock.Name(), stock.Shares()))

		btns = append(btns, markup.Data(stock.Symbol(), tgCallback.SelectStock, stock.Symbol()))
		if len(btns) == btnsInRow {
			rows = append(rows, markup.Row(btns...))
			btns = make([]tele.Btn, 0, btnsInRow)
		}
	}
	if len(btns) > 0 {
		rows = append(rows, markup.Row(btns...))
	}

	markup.Inline(rows...)

	return sb.String(), markup
}

func StockCardResponse(stock *model.Stock) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	summary := report.Derive(stock)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💼 %s (%s)\n", report.Heading(stock), stock.Symbol()))
	if summary.IsEmpty() {
		sb.WriteString(report.EmptyHistoryMsg + "\n")
	} else {
		sb.WriteString(fmt.Sprintf("   ▸ Days: %d\n", summary.TotalDays))
		sb.WriteString(fmt.Sprintf("   ▸ Last close: %s (%s)\n", report.Money(summary.LastClose), summary.LastDate.Format(model.DateLayout)))
		if change, err := summary.PercentChange(); err == nil {
			sb.WriteString(fmt.Sprintf("   ▸ Change: %s%%\n", change.StringFixed(2)))
		}
	}

	symbol := stock.Symbol()
	markup.Inline(
		markup.Row(
			markup.Data("➕ Buy", tgCallback.BuyStock, symbol),
			markup.Data("➖ Sell", tgCallback.SellStock, symbol),
		),
		markup.Row(
			markup.Data("📈 Report", tgCallback.Report, symbol),
			markup.Data("📊 Chart", tgCallback.Chart, symbol),
			markup.Data("🗓 History", tgCallback.History, symbol),
		),
		markup.Row(
			markup.Data("📥 Import CSV", tgCallback.ImportCSV, symbol),
			markup.Data("🗑 Delete", tgCallback.DeleteStock, symbol),
		),
		markup.Row(markup.Data("⬅️ Back", tgCallback.BackToList)),
	)

	return sb.String(), markup
}

// Preformatted wraps text into a monospace block, telegram limits a message to 4096 chars.
func Preformatted(text string) string {
	const limit = 4000
	if len([]rune(text)) > limit {
		text = string([]rune(text)[:limit]) + "\n…"
	}
	return "```\n" + text + "\n```"
}

func HistoryText(stock *model.Stock) string {
	if stock.Len() == 0 {
		return report.Heading(stock) + "\n\n" + report.EmptyHistoryMsg
	}
	return report.Heading(stock) + "\n\n" + report.HistoryTable(stock)
}
