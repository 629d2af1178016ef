// Package csvImporter reads daily price history exported in the Yahoo Finance CSV layout.
package csvImporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/shopspring/decimal"
)

const (
	dateColumn   = "date"
	closeColumn  = "close"
	volumeColumn = "volume"
)

type columns struct {
	date, close, volume int
}

// ImportFile opens path and imports it, see Import.
func ImportFile(path string) ([]model.DailyData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return Import(f)
}

// Import parses all rows of r. The columns Date, Close and Volume are located by header name,
// other columns are ignored. Any malformed row fails the whole import with model.ErrParse.
func Import(r io.Reader) ([]model.DailyData, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", model.ErrParse)
		}
		return nil, fmt.Errorf("%w: line 1: %v", model.ErrParse, err)
	}

	cols, err := locateColumns(header)
	if err != nil {
		return nil, err
	}

	res := make([]model.DailyData, 0)
	lineNum := 1

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", model.ErrParse, lineNum, err)
		}

		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		d, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", model.ErrParse, lineNum, err)
		}
		res = append(res, d)
	}

	return res, nil
}

func locateColumns(header []string) (columns, error) {
	cols := columns{date: -1, close: -1, volume: -1}
	for i, name := range header {
		// первая колонка может начинаться с BOM
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))) {
		case dateColumn:
			cols.date = i
		case closeColumn:
			cols.close = i
		case volumeColumn:
			cols.volume = i
		}
	}

	if cols.date < 0 || cols.close < 0 || cols.volume < 0 {
		return columns{}, fmt.Errorf("%w: line 1: header must contain Date, Close and Volume columns", model.ErrParse)
	}
	return cols, nil
}

func parseRecord(record []string, cols columns) (model.DailyData, error) {
	if len(record) <= max(cols.date, cols.close, cols.volume) {
		return model.DailyData{}, fmt.Errorf("expected at least %d fields, got %d", max(cols.date, cols.close, cols.volume)+1, len(record))
	}

	date, err := model.ParseDate(strings.TrimSpace(record[cols.date]))
	if err != nil {
		return model.DailyData{}, err
	}

	closePrice, err := decimal.NewFromString(strings.TrimSpace(record[cols.close]))
	if err != nil {
		return model.DailyData{}, fmt.Errorf("invalid close %q", record[cols.close])
	}

	volume, err := parseVolume(strings.TrimSpace(record[cols.volume]))
	if err != nil {
		return model.DailyData{}, err
	}

	return model.NewDailyData(date, closePrice, volume)
}

func parseVolume(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("invalid volume %q", s)
	}
	return d.IntPart(), nil
}
