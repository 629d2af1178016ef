package report

import (
	"fmt"
	"time"

	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/shopspring/decimal"
)

const (
	XAxisTitle = "Date"
	YAxisTitle = "Close Price"
)

// Series is the input of a line chart: parallel dates and closes, oldest first.
type Series struct {
	Title  string
	Dates  []time.Time
	Closes []decimal.Decimal
}

func (s Series) Len() int { return len(s.Dates) }

func ChartSeries(stock *model.Stock) Series {
	history := sortedHistory(stock)

	series := Series{
		Title:  ChartTitle(stock),
		Dates:  make([]time.Time, 0, len(history)),
		Closes: make([]decimal.Decimal, 0, len(history)),
	}
	for _, d := range history {
		series.Dates = append(series.Dates, d.Date())
		series.Closes = append(series.Closes, d.Close())
	}

	return series
}

func ChartTitle(stock *model.Stock) string {
	return fmt.Sprintf("%s (%s) Price History", stock.Name(), stock.Symbol())
}
