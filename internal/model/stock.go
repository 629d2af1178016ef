package model

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Stock is one tracked symbol with its share count and price history.
type Stock struct {
	symbol  string
	name    string
	shares  decimal.Decimal
	history []DailyData
}

func NewStock(symbol, name string, shares decimal.Decimal) (*Stock, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrInvalidArgument)
	}
	if shares.IsNegative() {
		return nil, fmt.Errorf("%w: negative shares %s", ErrInvalidArgument, shares)
	}

	return &Stock{symbol: symbol, name: name, shares: shares}, nil
}

func (s *Stock) Symbol() string          { return s.symbol }
func (s *Stock) Name() string            { return s.name }
func (s *Stock) Shares() decimal.Decimal { return s.shares }
func (s *Stock) Len() int                { return len(s.history) }

// History returns a copy of the samples in their current order.
func (s *Stock) History() []DailyData {
	return slices.Clone(s.history)
}

func (s *Stock) Buy(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: buy amount must be positive, got %s", ErrInvalidArgument, amount)
	}

	s.shares = s.shares.Add(amount)
	return nil
}

func (s *Stock) Sell(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: sell amount must be positive, got %s", ErrInvalidArgument, amount)
	}
	if amount.GreaterThan(s.shares) {
		return fmt.Errorf("%w: %s has %s shares, can't sell %s", ErrInsufficientShares, s.symbol, s.shares, amount)
	}

	s.shares = s.shares.Sub(amount)
	return nil
}

func (s *Stock) AddDailyData(date time.Time, close decimal.Decimal, volume int64) error {
	d, err := NewDailyData(date, close, volume)
	if err != nil {
		return err
	}
	if s.hasDate(d.date) {
		return fmt.Errorf("%w: %s already has %s", ErrDuplicateDate, s.symbol, d.date.Format(DateLayout))
	}

	s.history = append(s.history, d)
	return nil
}

// MergeHistory appends a batch of samples. Samples on dates already present are skipped,
// a batch holding the same date twice is rejected as a whole.
func (s *Stock) MergeHistory(batch []DailyData) (added int, err error) {
	seen := make(map[time.Time]struct{}, len(batch))
	for _, d := range batch {
		if d.date.IsZero() {
			return 0, fmt.Errorf("%w: sample without date", ErrInvalidArgument)
		}
		if _, ok := seen[d.date]; ok {
			return 0, fmt.Errorf("%w: batch has %s twice", ErrDuplicateDate, d.date.Format(DateLayout))
		}
		seen[d.date] = struct{}{}
	}

	for _, d := range batch {
		if s.hasDate(d.date) {
			continue
		}
		s.history = append(s.history, d)
		added++
	}

	return added, nil
}

// SortHistory orders samples by date, oldest first.
func (s *Stock) SortHistory() {
	slices.SortStableFunc(s.history, func(a, b DailyData) int {
		return a.date.Compare(b.date)
	})
}

// Clone returns a deep copy of the stock.
func (s *Stock) Clone() *Stock {
	c := *s
	c.history = slices.Clone(s.history)
	return &c
}

func (s *Stock) hasDate(date time.Time) bool {
	return slices.ContainsFunc(s.history, func(d DailyData) bool {
		return d.date.Equal(date)
	})
}
