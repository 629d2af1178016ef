package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewStockValidation(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		shares  string
		wantErr error
	}{
		{"ok", "AAPL", "10", nil},
		{"fractional", "MSFT", "0.5", nil},
		{"zero shares", "GOOG", "0", nil},
		{"empty symbol", "", "1", ErrInvalidArgument},
		{"blank symbol", "   ", "1", ErrInvalidArgument},
		{"negative shares", "AAPL", "-1", ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStock(tt.symbol, "name", dec(tt.shares))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewStock err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStockBuySell(t *testing.T) {
	s, err := NewStock("AAPL", "Apple", dec("10"))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Buy(dec("2.5")); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if !s.Shares().Equal(dec("12.5")) {
		t.Fatalf("shares = %s, want 12.5", s.Shares())
	}

	if err := s.Sell(dec("12.5")); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if !s.Shares().IsZero() {
		t.Fatalf("shares = %s, want 0", s.Shares())
	}
}

func TestStockSellInsufficientLeavesShares(t *testing.T) {
	s, _ := NewStock("AAPL", "Apple", dec("3"))

	err := s.Sell(dec("3.01"))
	if !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("Sell err = %v, want ErrInsufficientShares", err)
	}
	if !s.Shares().Equal(dec("3")) {
		t.Fatalf("shares changed to %s", s.Shares())
	}
}

func TestStockRejectsNonPositiveAmounts(t *testing.T) {
	s, _ := NewStock("AAPL", "Apple", dec("3"))

	for _, amount := range []string{"0", "-1"} {
		if err := s.Buy(dec(amount)); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Buy(%s) err = %v, want ErrInvalidArgument", amount, err)
		}
		if err := s.Sell(dec(amount)); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Sell(%s) err = %v, want ErrInvalidArgument", amount, err)
		}
	}
	if !s.Shares().Equal(dec("3")) {
		t.Fatalf("shares changed to %s", s.Shares())
	}
}

func TestSharesNeverNegative(t *testing.T) {
	s, _ := NewStock("AAPL", "Apple", dec("0"))
	ops := []struct {
		buy    bool
		amount string
	}{
		{true, "5"}, {false, "2"}, {false, "4"}, {true, "0.25"}, {false, "3.25"}, {false, "0.01"}, {true, "1"}, {false, "1"},
	}

	for _, op := range ops {
		if op.buy {
			_ = s.Buy(dec(op.amount))
		} else {
			_ = s.Sell(dec(op.amount))
		}
		if s.Shares().IsNegative() {
			t.Fatalf("shares went negative: %s", s.Shares())
		}
	}
	if !s.Shares().IsZero() {
		t.Fatalf("shares = %s, want 0", s.Shares())
	}
}

func TestAddDailyData(t *testing.T) {
	s, _ := NewStock("AAPL", "Apple", dec("1"))

	if err := s.AddDailyData(day("2024-01-03"), dec("110"), 1500); err != nil {
		t.Fatal(err)
	}
	if err := s.AddDailyData(time.Date(2024, 1, 3, 15, 30, 0, 0, time.UTC), dec("111"), 10); !errors.Is(err, ErrDuplicateDate) {
		t.Fatalf("duplicate date err = %v", err)
	}
	if err := s.AddDailyData(day("2024-01-04"), dec("-1"), 10); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("negative close err = %v", err)
	}
	if err := s.AddDailyData(day("2024-01-04"), dec("1"), -10); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("negative volume err = %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
}

func TestSortHistoryIsStableAscending(t *testing.T) {
	s, _ := NewStock("AAPL", "Apple", dec("1"))
	for _, d := range []string{"2024-01-05", "2024-01-02", "2024-01-04"} {
		if err := s.AddDailyData(day(d), dec("1"), 1); err != nil {
			t.Fatal(err)
		}
	}

	s.SortHistory()

	want := []string{"2024-01-02", "2024-01-04", "2024-01-05"}
	for i, d := range s.History() {
		if got := d.Date().Format(DateLayout); got != want[i] {
			t.Fatalf("history[%d] = %s, want %s", i, got, want[i])
		}
	}
}

func TestMergeHistory(t *testing.T) {
	s, _ := NewStock("AAPL", "Apple", dec("1"))
	_ = s.AddDailyData(day("2024-01-02"), dec("100"), 1000)

	d1, _ := NewDailyData(day("2024-01-02"), dec("999"), 1)
	d2, _ := NewDailyData(day("2024-01-03"), dec("110"), 1500)

	added, err := s.MergeHistory([]DailyData{d1, d2})
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	if !s.History()[0].Close().Equal(dec("100")) {
		t.Fatalf("existing sample overwritten: %s", s.History()[0])
	}

	d3, _ := NewDailyData(day("2024-01-04"), dec("1"), 1)
	_, err = s.MergeHistory([]DailyData{d3, d3})
	if !errors.Is(err, ErrDuplicateDate) {
		t.Fatalf("err = %v, want ErrDuplicateDate", err)
	}
	if s.Len() != 2 {
		t.Fatalf("batch partially applied, len = %d", s.Len())
	}
}

func TestHistoryIsACopy(t *testing.T) {
	s, _ := NewStock("AAPL", "Apple", dec("1"))
	_ = s.AddDailyData(day("2024-01-02"), dec("100"), 1000)

	h := s.History()
	h[0] = DailyData{}

	if s.History()[0].Date().IsZero() {
		t.Fatal("History exposed internal slice")
	}
}
