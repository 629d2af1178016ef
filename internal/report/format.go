package report

import (
	"fmt"
	"strings"

	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	shortDateLayout = "01/02/06"
	currency        = money.USD
	EmptyHistoryMsg = "No price history yet. Retrieve or import data first."
)

var volumeFormatter = money.NewFormatter(0, ".", ",", "", "1")

// Money formats a price as $1,234.56.
func Money(d decimal.Decimal) string {
	cur := money.GetCurrency(currency)
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, currency).Display()
}

// Volume formats a volume with thousands separators.
func Volume(v int64) string {
	return volumeFormatter.Format(v)
}

// Heading is the stock card title: "<name> - <shares> Shares".
func Heading(stock *model.Stock) string {
	return fmt.Sprintf("%s - %s Shares", stock.Name(), stock.Shares())
}

// HistoryTable lists samples in stored order.
func HistoryTable(stock *model.Stock) string {
	var sb strings.Builder
	sb.WriteString("- Date -   - Price -   - Volume -\n")
	sb.WriteString("=================================\n")
	for _, d := range stock.History() {
		sb.WriteString(fmt.Sprintf("%s   %s   %d\n", d.Date().Format(shortDateLayout), Money(d.Close()), d.Volume()))
	}
	return sb.String()
}

// Text renders the performance summary followed by the daily rows.
func Text(stock *model.Stock) string {
	summary := Derive(stock)
	if summary.IsEmpty() {
		return EmptyHistoryMsg + "\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📈 Performance Summary for %s\n", summary.Name))
	sb.WriteString("----------------------------------------\n")
	for _, row := range summaryRows(summary) {
		sb.WriteString(fmt.Sprintf("%s: %s\n", row[0], row[1]))
	}
	sb.WriteString("\nDaily Price & Volume History\n")
	sb.WriteString("-----------------------------\n")
	for _, line := range dailyRows(stock) {
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// Markdown renders the same report as Text for a markdown renderer.
func Markdown(stock *model.Stock) string {
	summary := Derive(stock)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", Heading(stock)))
	if summary.IsEmpty() {
		sb.WriteString(EmptyHistoryMsg + "\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("## 📈 Performance Summary for %s\n\n", summary.Name))
	sb.WriteString("| | |\n|---|---|\n")
	for _, row := range summaryRows(summary) {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", row[0], row[1]))
	}
	sb.WriteString("\n## Daily Price & Volume History\n\n")
	for _, line := range dailyRows(stock) {
		sb.WriteString("- " + line + "\n")
	}
	return sb.String()
}

func summaryRows(s Summary) [][2]string {
	change := "n/a"
	if pct, err := s.PercentChange(); err == nil {
		change = pct.StringFixed(2) + "%"
	}

	return [][2]string{
		{"Symbol", s.Symbol},
		{"Total Days Tracked", fmt.Sprint(s.TotalDays)},
		{"Starting Price", Money(s.FirstClose)},
		{"Latest Price", Money(s.LastClose)},
		{"% Change", change},
		{"Highest Close", Money(s.HighestClose)},
		{"Lowest Close", Money(s.LowestClose)},
		{"Average Close", Money(s.AverageClose)},
		{"Total Volume", Volume(s.TotalVolume)},
	}
}

func dailyRows(stock *model.Stock) []string {
	history := sortedHistory(stock)
	rows := make([]string, 0, len(history))
	for _, d := range history {
		rows = append(rows, fmt.Sprintf("%s: %s, Vol: %d", d.Date().Format(shortDateLayout), Money(d.Close()), d.Volume()))
	}
	return rows
}
