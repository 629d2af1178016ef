// Package report derives summary statistics and chart series from a stock's history.
// Nothing here mutates the stock.
package report

import (
	"slices"
	"time"

	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Summary struct {
	Symbol       string
	Name         string
	Shares       decimal.Decimal
	TotalDays    int
	FirstDate    time.Time
	LastDate     time.Time
	FirstClose   decimal.Decimal
	LastClose    decimal.Decimal
	HighestClose decimal.Decimal
	LowestClose  decimal.Decimal
	AverageClose decimal.Decimal
	TotalVolume  int64
}

// IsEmpty reports whether the stock had no history. Callers show a placeholder instead of a report.
func (s Summary) IsEmpty() bool { return s.TotalDays == 0 }

// PercentChange is the change from the first to the last close, in percent.
func (s Summary) PercentChange() (decimal.Decimal, error) {
	if s.IsEmpty() || s.FirstClose.IsZero() {
		return decimal.Zero, model.ErrDivisionUndefined
	}
	return s.LastClose.Sub(s.FirstClose).Div(s.FirstClose).Mul(hundred), nil
}

func Derive(stock *model.Stock) Summary {
	summary := Summary{
		Symbol: stock.Symbol(),
		Name:   stock.Name(),
		Shares: stock.Shares(),
	}

	history := sortedHistory(stock)
	if len(history) == 0 {
		return summary
	}

	first, last := history[0], history[len(history)-1]
	summary.TotalDays = len(history)
	summary.FirstDate, summary.LastDate = first.Date(), last.Date()
	summary.FirstClose, summary.LastClose = first.Close(), last.Close()
	summary.HighestClose, summary.LowestClose = first.Close(), first.Close()

	total := decimal.Zero
	for _, d := range history {
		if d.Close().GreaterThan(summary.HighestClose) {
			summary.HighestClose = d.Close()
		}
		if d.Close().LessThan(summary.LowestClose) {
			summary.LowestClose = d.Close()
		}
		total = total.Add(d.Close())
		summary.TotalVolume += d.Volume()
	}
	summary.AverageClose = total.Div(decimal.NewFromInt(int64(len(history))))

	return summary
}

func sortedHistory(stock *model.Stock) []model.DailyData {
	history := stock.History()
	slices.SortStableFunc(history, func(a, b model.DailyData) int {
		return a.Date().Compare(b.Date())
	})
	return history
}
