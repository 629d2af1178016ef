package xslsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/KotFed0t/stock_manager/internal/report"
	"github.com/KotFed0t/stock_manager/utils"
	"github.com/xuri/excelize/v2"
)

const SummarySheet = "Summary"

var summaryHeader = []string{
	"Symbol", "Name", "Shares", "Total Days", "First Date", "Last Date", "Highest Close",
	"Lowest Close", "Average Close", "% Change", "Total Volume",
}

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

// SheetName is the name of the history sheet of the stock at the given 1-based position.
func SheetName(ordinal int, stock *model.Stock) string {
	name := fmt.Sprintf("%d. %s", ordinal, stock.Symbol())
	// excelize ограничивает имя листа 31 символом
	if len(name) > excelize.MaxSheetNameLength {
		name = name[:excelize.MaxSheetNameLength]
	}
	return name
}

// Generate builds a workbook with a summary sheet and one history sheet per stock.
// Every stock with history gets a line chart of its closes.
func (g *XSLSXGenerator) Generate(ctx context.Context, stocks []*model.Stock) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	if len(stocks) == 0 {
		return nil, "", errors.New("empty stocks")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("stocks", len(stocks)))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	// лист по умолчанию становится сводкой
	if err = f.SetSheetName("Sheet1", SummarySheet); err != nil {
		slog.Error("got error while renaming Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err = g.fillSummary(f, stocks); err != nil {
		slog.Error("got error while filling summary", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	for i, stock := range stocks {
		if err = g.fillHistorySheet(f, stock, SheetName(i+1, stock)); err != nil {
			slog.Error("got error while filling history sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", stock.Symbol()), slog.String("err", err.Error()))
			return nil, "", err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XSLSXGenerator) headerStyle(f *excelize.File, color string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
}

func (g *XSLSXGenerator) fillSummary(f *excelize.File, stocks []*model.Stock) error {
	for i, title := range summaryHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellStr(SummarySheet, cell, title)
	}

	styleID, err := g.headerStyle(f, "#cfe2f3") // светло-голубой
	if err != nil {
		return err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(summaryHeader), 1)
	if err = f.SetCellStyle(SummarySheet, "A1", lastHeader, styleID); err != nil {
		return fmt.Errorf("style error: %w", err)
	}

	for i, stock := range stocks {
		row := i + 2
		summary := report.Derive(stock)

		_ = f.SetCellStr(SummarySheet, fmt.Sprintf("A%d", row), summary.Symbol)
		_ = f.SetCellStr(SummarySheet, fmt.Sprintf("B%d", row), summary.Name)
		_ = f.SetCellValue(SummarySheet, fmt.Sprintf("C%d", row), summary.Shares.InexactFloat64())
		_ = f.SetCellInt(SummarySheet, fmt.Sprintf("D%d", row), int64(summary.TotalDays))

		if summary.IsEmpty() {
			continue
		}

		_ = f.SetCellStr(SummarySheet, fmt.Sprintf("E%d", row), summary.FirstDate.Format(model.DateLayout))
		_ = f.SetCellStr(SummarySheet, fmt.Sprintf("F%d", row), summary.LastDate.Format(model.DateLayout))
		_ = f.SetCellValue(SummarySheet, fmt.Sprintf("G%d", row), summary.HighestClose.InexactFloat64())
		_ = f.SetCellValue(SummarySheet, fmt.Sprintf("H%d", row), summary.LowestClose.InexactFloat64())
		_ = f.SetCellValue(SummarySheet, fmt.Sprintf("I%d", row), summary.AverageClose.Round(2).InexactFloat64())
		if change, err := summary.PercentChange(); err == nil {
			_ = f.SetCellValue(SummarySheet, fmt.Sprintf("J%d", row), change.Round(2).InexactFloat64())
		} else {
			_ = f.SetCellStr(SummarySheet, fmt.Sprintf("J%d", row), "n/a")
		}
		_ = f.SetCellInt(SummarySheet, fmt.Sprintf("K%d", row), summary.TotalVolume)
	}

	return nil
}

func (g *XSLSXGenerator) fillHistorySheet(f *excelize.File, stock *model.Stock, sheetName string) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	_ = f.SetCellStr(sheetName, "A1", report.XAxisTitle)
	_ = f.SetCellStr(sheetName, "B1", report.YAxisTitle)
	_ = f.SetCellStr(sheetName, "C1", "Volume")

	styleID, err := g.headerStyle(f, "#d9ead3") // светло-зеленый
	if err != nil {
		return err
	}
	if err = f.SetCellStyle(sheetName, "A1", "C1", styleID); err != nil {
		return fmt.Errorf("style error: %w", err)
	}

	series := report.ChartSeries(stock)
	volumes := make(map[string]int64, stock.Len())
	for _, d := range stock.History() {
		volumes[d.Date().Format(model.DateLayout)] = d.Volume()
	}

	for i := range series.Len() {
		row := i + 2
		date := series.Dates[i].Format(model.DateLayout)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), date)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), series.Closes[i].InexactFloat64())
		_ = f.SetCellInt(sheetName, fmt.Sprintf("C%d", row), volumes[date])
	}

	if series.Len() == 0 {
		_ = f.SetCellStr(sheetName, "A2", report.EmptyHistoryMsg)
		return nil
	}

	return g.addChart(f, sheetName, series)
}

func (g *XSLSXGenerator) addChart(f *excelize.File, sheetName string, series report.Series) error {
	lastRow := series.Len() + 1
	ref := func(col string) string {
		return fmt.Sprintf("'%s'!$%s$2:$%s$%d", sheetName, col, col, lastRow)
	}

	return f.AddChart(sheetName, "E2", &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("'%s'!$B$1", sheetName),
				Categories: ref("A"),
				Values:     ref("B"),
				Marker: excelize.ChartMarker{
					Symbol: "circle",
					Size:   5,
				},
			},
		},
		Format: excelize.GraphicOptions{
			OffsetX: 15,
			OffsetY: 10,
		},
		Title: []excelize.RichTextRun{{Text: series.Title}},
		XAxis: excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: report.XAxisTitle}}},
		YAxis: excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: report.YAxisTitle}}},
		Legend: excelize.ChartLegend{
			Position: "none",
		},
		PlotArea: excelize.ChartPlotArea{
			ShowVal: false,
		},
	})
}
