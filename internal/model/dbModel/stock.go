package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Stock struct {
	Symbol  string          `db:"symbol"`
	Name    string          `db:"name"`
	Shares  decimal.Decimal `db:"shares"`
	Ordinal int             `db:"ordinal"`
}

type DailyData struct {
	Symbol    string          `db:"symbol"`
	TradeDate time.Time       `db:"trade_date"`
	Close     decimal.Decimal `db:"close"`
	Volume    int64           `db:"volume"`
	Ordinal   int             `db:"ordinal"`
}
