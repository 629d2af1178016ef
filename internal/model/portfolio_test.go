package model

import (
	"errors"
	"slices"
	"testing"
)

func symbols(p *Portfolio) []string {
	var res []string
	for s := range p.SortedSymbols() {
		res = append(res, s.Symbol())
	}
	return res
}

func TestSortedSymbols(t *testing.T) {
	p := NewPortfolio()
	for _, s := range []string{"MSFT", "AAPL", "GOOG"} {
		if _, err := p.AddStock(s, s, dec("1")); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{"AAPL", "GOOG", "MSFT"}
	if got := symbols(p); !slices.Equal(got, want) {
		t.Fatalf("SortedSymbols = %v, want %v", got, want)
	}
	// restartable
	if got := symbols(p); !slices.Equal(got, want) {
		t.Fatalf("second pass = %v, want %v", got, want)
	}
	// insertion order untouched
	if p.Stocks()[0].Symbol() != "MSFT" {
		t.Fatalf("SortedSymbols reordered the portfolio")
	}
}

func TestSortedSymbolsEarlyStop(t *testing.T) {
	p := NewPortfolio()
	for _, s := range []string{"B", "A", "C"} {
		_, _ = p.AddStock(s, s, dec("1"))
	}

	var got []string
	for s := range p.SortedSymbols() {
		got = append(got, s.Symbol())
		if len(got) == 2 {
			break
		}
	}
	if !slices.Equal(got, []string{"A", "B"}) {
		t.Fatalf("got %v", got)
	}
}

func TestAddStockDuplicate(t *testing.T) {
	p := NewPortfolio()
	if _, err := p.AddStock("AAPL", "Apple", dec("10")); err != nil {
		t.Fatal(err)
	}

	_, err := p.AddStock("AAPL", "Apple Inc", dec("5"))
	if !errors.Is(err, ErrDuplicateSymbol) {
		t.Fatalf("err = %v, want ErrDuplicateSymbol", err)
	}

	s, ok := p.FindBySymbol("AAPL")
	if !ok {
		t.Fatal("AAPL not found")
	}
	if s.Name() != "Apple" || !s.Shares().Equal(dec("10")) {
		t.Fatalf("original stock changed: %s %s", s.Name(), s.Shares())
	}
	if p.Len() != 1 {
		t.Fatalf("len = %d", p.Len())
	}
}

func TestDeleteStock(t *testing.T) {
	p := NewPortfolio()
	_, _ = p.AddStock("MSFT", "Microsoft", dec("1"))

	if err := p.DeleteStock("AAPL"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if p.Len() != 1 {
		t.Fatalf("portfolio changed, len = %d", p.Len())
	}

	if err := p.DeleteStock("MSFT"); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.FindBySymbol("MSFT"); ok {
		t.Fatal("MSFT still present")
	}
}

func TestSortBySymbolSortsHistories(t *testing.T) {
	p := NewPortfolio()
	b, _ := p.AddStock("B", "b", dec("1"))
	_, _ = p.AddStock("A", "a", dec("1"))
	_ = b.AddDailyData(day("2024-02-01"), dec("2"), 1)
	_ = b.AddDailyData(day("2024-01-01"), dec("1"), 1)

	p.SortBySymbol()

	if p.Stocks()[0].Symbol() != "A" {
		t.Fatalf("first = %s", p.Stocks()[0].Symbol())
	}
	if got := b.History()[0].Date().Format(DateLayout); got != "2024-01-01" {
		t.Fatalf("history not sorted, first = %s", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := NewPortfolio()
	s, _ := p.AddStock("AAPL", "Apple", dec("1"))
	_ = s.AddDailyData(day("2024-01-02"), dec("100"), 1000)

	c := p.Clone()
	cs, _ := c.FindBySymbol("AAPL")
	_ = cs.Buy(dec("5"))
	_ = cs.AddDailyData(day("2024-01-03"), dec("1"), 1)

	if !s.Shares().Equal(dec("1")) || s.Len() != 1 {
		t.Fatalf("clone shares state with original")
	}
}
