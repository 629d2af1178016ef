package xslsxGenerator

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func newStock(t *testing.T, symbol string, closes ...string) *model.Stock {
	t.Helper()
	stock, err := model.NewStock(symbol, symbol+" Inc", decimal.NewFromInt(10))
	if err != nil {
		t.Fatal(err)
	}
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		if err = stock.AddDailyData(day.AddDate(0, 0, i), decimal.RequireFromString(c), int64(1000*(i+1))); err != nil {
			t.Fatal(err)
		}
	}
	return stock
}

func TestGenerate(t *testing.T) {
	stocks := []*model.Stock{
		newStock(t, "AAPL", "100", "110", "105"),
		newStock(t, "MSFT"),
	}

	fileBytes, ext, err := New().Generate(context.Background(), stocks)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if ext != ".xlsx" {
		t.Errorf("unexpected extension %q", ext)
	}

	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{SummarySheet, "1. AAPL", "2. MSFT"}
	if len(sheets) != len(want) {
		t.Fatalf("expected sheets %v, got %v", want, sheets)
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Errorf("sheet %d: expected %q, got %q", i, want[i], sheets[i])
		}
	}

	cells := []struct {
		sheet, cell, want string
	}{
		{SummarySheet, "A2", "AAPL"},
		{SummarySheet, "D2", "3"},
		{SummarySheet, "E2", "2024-01-02"},
		{SummarySheet, "J2", "5"},
		{SummarySheet, "K2", "6000"},
		{SummarySheet, "D3", "0"},
		{"1. AAPL", "A1", "Date"},
		{"1. AAPL", "B1", "Close Price"},
		{"1. AAPL", "A4", "2024-01-04"},
		{"1. AAPL", "B3", "110"},
		{"1. AAPL", "C4", "3000"},
	}
	for _, c := range cells {
		got, err := f.GetCellValue(c.sheet, c.cell)
		if err != nil {
			t.Fatalf("GetCellValue %s!%s: %v", c.sheet, c.cell, err)
		}
		if got != c.want {
			t.Errorf("%s!%s: expected %q, got %q", c.sheet, c.cell, c.want, got)
		}
	}

	zr, err := zip.NewReader(bytes.NewReader(fileBytes), int64(len(fileBytes)))
	if err != nil {
		t.Fatal(err)
	}
	var charts int
	for _, file := range zr.File {
		if strings.HasPrefix(file.Name, "xl/charts/chart") {
			charts++
		}
	}
	if charts != 1 {
		t.Errorf("expected one chart for the stock with history, got %d", charts)
	}
}

func TestGenerateEmpty(t *testing.T) {
	if _, _, err := New().Generate(context.Background(), nil); err == nil {
		t.Error("expected error for empty stocks")
	}
}
