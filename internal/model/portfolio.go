package model

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"github.com/shopspring/decimal"
)

// Portfolio is the working set of tracked stocks. It is not safe for concurrent use.
type Portfolio struct {
	stocks []*Stock
}

func NewPortfolio() *Portfolio {
	return &Portfolio{}
}

func (p *Portfolio) Len() int { return len(p.stocks) }

// Stocks returns the stocks in insertion order.
func (p *Portfolio) Stocks() []*Stock {
	return slices.Clone(p.stocks)
}

func (p *Portfolio) AddStock(symbol, name string, shares decimal.Decimal) (*Stock, error) {
	stock, err := NewStock(symbol, name, shares)
	if err != nil {
		return nil, err
	}
	if _, ok := p.FindBySymbol(stock.symbol); ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSymbol, stock.symbol)
	}

	p.stocks = append(p.stocks, stock)
	return stock, nil
}

// Attach inserts an already built stock, used when loading from a store.
func (p *Portfolio) Attach(stock *Stock) error {
	if stock == nil {
		return fmt.Errorf("%w: nil stock", ErrInvalidArgument)
	}
	if _, ok := p.FindBySymbol(stock.symbol); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, stock.symbol)
	}

	p.stocks = append(p.stocks, stock)
	return nil
}

func (p *Portfolio) FindBySymbol(symbol string) (*Stock, bool) {
	i := p.indexOf(symbol)
	if i < 0 {
		return nil, false
	}
	return p.stocks[i], true
}

func (p *Portfolio) DeleteStock(symbol string) error {
	i := p.indexOf(symbol)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}

	p.stocks = slices.Delete(p.stocks, i, i+1)
	return nil
}

// SortedSymbols yields stocks ordered by symbol, ties kept in insertion order.
// The order is taken when iteration starts, so the sequence can be ranged over again.
func (p *Portfolio) SortedSymbols() iter.Seq[*Stock] {
	return func(yield func(*Stock) bool) {
		sorted := slices.Clone(p.stocks)
		slices.SortStableFunc(sorted, bySymbol)
		for _, s := range sorted {
			if !yield(s) {
				return
			}
		}
	}
}

// SortBySymbol sorts the stocks in place and every stock history by date.
func (p *Portfolio) SortBySymbol() {
	slices.SortStableFunc(p.stocks, bySymbol)
	for _, s := range p.stocks {
		s.SortHistory()
	}
}

// Clone returns a deep copy.
func (p *Portfolio) Clone() *Portfolio {
	c := &Portfolio{stocks: make([]*Stock, 0, len(p.stocks))}
	for _, s := range p.stocks {
		c.stocks = append(c.stocks, s.Clone())
	}
	return c
}

func (p *Portfolio) indexOf(symbol string) int {
	return slices.IndexFunc(p.stocks, func(s *Stock) bool {
		return s.symbol == symbol
	})
}

func bySymbol(a, b *Stock) int {
	return cmp.Compare(a.symbol, b.symbol)
}
