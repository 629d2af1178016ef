package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// DailyData is one day's close price and volume of a stock. It is immutable.
type DailyData struct {
	date   time.Time
	close  decimal.Decimal
	volume int64
}

// NewDailyData validates the sample and drops the time component of date.
func NewDailyData(date time.Time, close decimal.Decimal, volume int64) (DailyData, error) {
	if date.IsZero() {
		return DailyData{}, fmt.Errorf("%w: empty date", ErrInvalidArgument)
	}
	if close.IsNegative() {
		return DailyData{}, fmt.Errorf("%w: negative close %s", ErrInvalidArgument, close)
	}
	if volume < 0 {
		return DailyData{}, fmt.Errorf("%w: negative volume %d", ErrInvalidArgument, volume)
	}

	return DailyData{date: TruncateDate(date), close: close, volume: volume}, nil
}

func (d DailyData) Date() time.Time        { return d.date }
func (d DailyData) Close() decimal.Decimal { return d.close }
func (d DailyData) Volume() int64          { return d.volume }

func (d DailyData) String() string {
	return fmt.Sprintf("%s %s %d", d.date.Format(DateLayout), d.close, d.volume)
}

// TruncateDate returns the calendar date of t as UTC midnight.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrInvalidArgument, s, err)
	}
	return t, nil
}
