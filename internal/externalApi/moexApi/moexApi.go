package moexApi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/KotFed0t/stock_manager/config"
	"github.com/KotFed0t/stock_manager/internal/externalApi"
	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/KotFed0t/stock_manager/internal/model/moexModel"
	"github.com/KotFed0t/stock_manager/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// maxPages ограничивает пагинацию на случай некорректного курсора.
const maxPages = 100

type MoexApi struct {
	client *resty.Client
	board  string
}

func New(cfg *config.Config) *MoexApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.MoexApi.Url)
	return &MoexApi{client: client, board: cfg.API.MoexApi.Board}
}

// FetchRange returns daily close/volume samples of symbol within [from, to] in ascending date order.
// Days without trades are skipped.
func (a *MoexApi) FetchRange(ctx context.Context, symbol string, from, to time.Time) ([]model.DailyData, error) {
	rqId := utils.GetRequestIDFromCtx(ctx)
	op := "MoexApi.FetchRange"
	url := fmt.Sprintf("/iss/history/engines/stock/markets/shares/boards/%s/securities/%s.json", a.board, symbol)

	if to.Before(from) {
		return nil, fmt.Errorf("%w: range %s..%s", model.ErrInvalidArgument, from.Format(model.DateLayout), to.Format(model.DateLayout))
	}

	slog.Debug("start MoexApi.FetchRange request", slog.String("rqID", rqId), slog.String("op", op), slog.String("symbol", symbol))

	res := make([]model.DailyData, 0)
	var start int64

	for page := 0; page < maxPages; page++ {
		params := map[string]string{
			"iss.meta":        "off",
			"from":            from.Format(model.DateLayout),
			"till":            to.Format(model.DateLayout),
			"start":           strconv.FormatInt(start, 10),
			"history.columns": "TRADEDATE,CLOSE,VOLUME",
		}

		rawHistory := moexModel.RawHistory{}
		if err := a.get(ctx, url, params, &rawHistory); err != nil {
			slog.Error("failed to get history page", slog.String("err", err.Error()), slog.String("rqID", rqId), slog.String("op", op))
			return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
		}

		err := a.handleRawHistory(rawHistory.History, func(d model.DailyData) {
			res = append(res, d)
		})
		if err != nil {
			slog.Error("can't parse raw history", slog.String("err", err.Error()), slog.String("rqID", rqId), slog.String("op", op))
			return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
		}

		cursor, err := a.parseCursor(rawHistory.Cursor)
		if err != nil {
			slog.Error("can't parse history cursor", slog.String("err", err.Error()), slog.String("rqID", rqId), slog.String("op", op))
			return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
		}

		if cursor.Done() {
			break
		}
		start = cursor.Index + cursor.PageSize
	}

	slog.Debug("MoexApi.FetchRange request complete", slog.String("rqID", rqId), slog.String("op", op), slog.Int("rows", len(res)))

	return res, nil
}

// GetSecurityInfo returns the short name of a ticker traded on the configured board.
func (a *MoexApi) GetSecurityInfo(ctx context.Context, ticker string) (moexModel.SecurityInfo, error) {
	rqId := utils.GetRequestIDFromCtx(ctx)
	url := fmt.Sprintf("/iss/engines/stock/markets/shares/boards/%s/securities.json", a.board)
	params := map[string]string{
		"iss.meta":           "off",
		"iss.only":           "securities",
		"securities.columns": "SECID,SHORTNAME",
		"securities":         ticker,
	}

	slog.Debug("start MoexApi.GetSecurityInfo request", slog.String("rqID", rqId))

	rawSecurities := moexModel.RawSecurities{}
	if err := a.get(ctx, url, params, &rawSecurities); err != nil {
		slog.Error("error while dialing MoexApi", slog.String("err", err.Error()), slog.String("rqID", rqId))
		return moexModel.SecurityInfo{}, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}

	for _, row := range rawSecurities.Securities.Data {
		if len(row) != len(rawSecurities.Securities.Columns) {
			return moexModel.SecurityInfo{}, fmt.Errorf("%w: invalid securities row", model.ErrSourceUnavailable)
		}

		info := moexModel.SecurityInfo{}
		for j, column := range rawSecurities.Securities.Columns {
			switch column {
			case "SECID":
				info.Ticker, _ = row[j].(string)
			case "SHORTNAME":
				info.Shortname, _ = row[j].(string)
			}
		}

		if info.Ticker == ticker {
			slog.Debug("MoexApi.GetSecurityInfo request complete", slog.String("rqID", rqId))
			return info, nil
		}
	}

	return moexModel.SecurityInfo{}, externalApi.ErrNotFound
}

func (a *MoexApi) get(ctx context.Context, url string, params map[string]string, dst any) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)
	if err != nil {
		return err
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	// числа читаем как json.Number, чтобы не терять точность цены
	decoder := json.NewDecoder(bytes.NewReader(resp.Body()))
	decoder.UseNumber()
	if err = decoder.Decode(dst); err != nil {
		return fmt.Errorf("can't unmarshall response: %w", err)
	}

	return nil
}

func (a *MoexApi) handleRawHistory(table moexModel.Table, handleFn func(d model.DailyData)) error {
	for i, row := range table.Data {
		if len(row) != len(table.Columns) {
			return fmt.Errorf("invalid history row %d", i)
		}

		var (
			date    time.Time
			closeP  decimal.Decimal
			volume  int64
			noTrade bool
		)

		for j, column := range table.Columns {
			switch column {
			case "TRADEDATE":
				s, ok := row[j].(string)
				if !ok {
					return fmt.Errorf("invalid type TRADEDATE = %v", row[j])
				}
				t, err := model.ParseDate(s)
				if err != nil {
					return err
				}
				date = t
			case "CLOSE":
				if row[j] == nil {
					noTrade = true
					continue
				}
				d, err := numberToDecimal(row[j])
				if err != nil {
					return fmt.Errorf("invalid CLOSE: %w", err)
				}
				closeP = d
			case "VOLUME":
				if row[j] == nil {
					continue
				}
				d, err := numberToDecimal(row[j])
				if err != nil {
					return fmt.Errorf("invalid VOLUME: %w", err)
				}
				volume = d.IntPart()
			default:
				return fmt.Errorf("unknown column %s", column)
			}
		}

		if noTrade {
			continue
		}

		d, err := model.NewDailyData(date, closeP, volume)
		if err != nil {
			return err
		}
		handleFn(d)
	}
	return nil
}

func (a *MoexApi) parseCursor(table moexModel.Table) (moexModel.Cursor, error) {
	cursor := moexModel.Cursor{}
	if len(table.Data) == 0 {
		return cursor, nil
	}

	row := table.Data[0]
	if len(row) != len(table.Columns) {
		return cursor, errors.New("invalid cursor")
	}

	for j, column := range table.Columns {
		d, err := numberToDecimal(row[j])
		if err != nil {
			return cursor, fmt.Errorf("invalid %s: %w", column, err)
		}
		switch column {
		case "INDEX":
			cursor.Index = d.IntPart()
		case "TOTAL":
			cursor.Total = d.IntPart()
		case "PAGESIZE":
			cursor.PageSize = d.IntPart()
		}
	}

	return cursor, nil
}

func numberToDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case json.Number:
		return decimal.NewFromString(n.String())
	case float64:
		return decimal.NewFromFloat(n), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected type %T", v)
	}
}
