package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KotFed0t/stock_manager/data/repository"
	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/KotFed0t/stock_manager/internal/service"
	"github.com/shopspring/decimal"
)

var errNoSelection = errors.New("error no stock selected")

// ParseAddArgs parses "SYMBOL SHARES [NAME...]". The symbol is upper-cased.
func ParseAddArgs(args []string) (symbol string, shares decimal.Decimal, name string, err error) {
	if len(args) < 2 {
		return "", decimal.Zero, "", fmt.Errorf("%w: expected symbol and shares", model.ErrInvalidArgument)
	}

	shares, err = decimal.NewFromString(args[1])
	if err != nil {
		return "", decimal.Zero, "", fmt.Errorf("%w: shares %q", model.ErrInvalidArgument, args[1])
	}

	return strings.ToUpper(args[0]), shares, strings.Join(args[2:], " "), nil
}

// ParseAmount parses a positive number of shares.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", model.ErrInvalidArgument, s)
	}
	return amount, nil
}

// ParseDailyDataArgs parses "YYYY-MM-DD CLOSE VOLUME".
func ParseDailyDataArgs(args []string) (date time.Time, closePrice decimal.Decimal, volume int64, err error) {
	if len(args) != 3 {
		return time.Time{}, decimal.Zero, 0, fmt.Errorf("%w: expected date, close and volume", model.ErrInvalidArgument)
	}

	if date, err = model.ParseDate(args[0]); err != nil {
		return time.Time{}, decimal.Zero, 0, err
	}

	if closePrice, err = decimal.NewFromString(args[1]); err != nil {
		return time.Time{}, decimal.Zero, 0, fmt.Errorf("%w: close %q", model.ErrInvalidArgument, args[1])
	}

	if volume, err = strconv.ParseInt(args[2], 10, 64); err != nil {
		return time.Time{}, decimal.Zero, 0, fmt.Errorf("%w: volume %q", model.ErrInvalidArgument, args[2])
	}

	return date, closePrice, volume, nil
}

// ParseRangeArgs parses "FROM TO" dates.
func ParseRangeArgs(args []string) (from, to time.Time, err error) {
	if len(args) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: expected from and to dates", model.ErrInvalidArgument)
	}

	if from, err = model.ParseDate(args[0]); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to, err = model.ParseDate(args[1]); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from is after to", model.ErrInvalidArgument)
	}

	return from, to, nil
}

// ErrorMessage translates an error into a message for the chat.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, errNoSelection):
		return selectStockMsg
	case errors.Is(err, model.ErrDuplicateSymbol), errors.Is(err, repository.ErrAlreadyExists):
		return "⚠️ stock is already in the portfolio"
	case errors.Is(err, model.ErrNotFound):
		return "⚠️ stock not found"
	case errors.Is(err, model.ErrInsufficientShares):
		return "⚠️ not enough shares to sell"
	case errors.Is(err, model.ErrDuplicateDate):
		return "⚠️ data for this date already exists"
	case errors.Is(err, model.ErrParse):
		return "⚠️ can't read the file: " + err.Error()
	case errors.Is(err, model.ErrSourceUnavailable):
		return "⚠️ data source is unavailable, try again later"
	case errors.Is(err, model.ErrInvalidArgument):
		return "⚠️ invalid input: " + err.Error()
	case errors.Is(err, service.ErrEmptyPortfolio):
		return "📋 Portfolio is empty"
	case errors.Is(err, service.ErrStorageUnavailable):
		return "⚠️ storage is unavailable"
	default:
		return internalErrMsg
	}
}
