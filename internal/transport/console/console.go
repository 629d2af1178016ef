// Package console is the interactive text menu over the stock service.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/KotFed0t/stock_manager/internal/report"
	"github.com/KotFed0t/stock_manager/utils"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
)

const mainMenu = `
Stock Analyzer
==============
1 - Manage Stocks
2 - Add Daily Stock Data
3 - Show Report
4 - Show Chart
5 - Manage Data
0 - Exit
`

const stocksMenu = `
Manage Stocks
-------------
1 - Add Stock
2 - Update Shares
3 - Delete Stock
4 - List Stocks
0 - Back
`

const dataMenu = `
Manage Data
-----------
1 - Save Data
2 - Load Data
3 - Retrieve Data From Web
4 - Import CSV File
0 - Back
`

type StockService interface {
	Load(ctx context.Context) (int, error)
	Save(ctx context.Context) (int, error)
	AddStock(ctx context.Context, symbol, name string, shares decimal.Decimal) (*model.Stock, error)
	Buy(ctx context.Context, symbol string, amount decimal.Decimal) (*model.Stock, error)
	Sell(ctx context.Context, symbol string, amount decimal.Decimal) (*model.Stock, error)
	DeleteStock(ctx context.Context, symbol string) error
	List(ctx context.Context) []*model.Stock
	AddDailyData(ctx context.Context, symbol string, date time.Time, closePrice decimal.Decimal, volume int64) error
	FetchHistory(ctx context.Context, from, to time.Time, symbols ...string) (int, error)
	ImportHistoryFile(ctx context.Context, symbol, path string) (int, error)
	ReportMarkdown(ctx context.Context, symbol string) (string, error)
	Chart(ctx context.Context, symbol string) ([]byte, string, error)
}

type Console struct {
	srvc     StockService
	in       *bufio.Scanner
	out      io.Writer
	renderer *glamour.TermRenderer
	chartDir string
}

type Option func(c *Console)

// WithChartDir sets the directory chart workbooks are written to.
func WithChartDir(dir string) Option {
	return func(c *Console) { c.chartDir = dir }
}

func New(srvc StockService, in io.Reader, out io.Writer, style string, opts ...Option) (*Console, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, err
	}

	c := &Console{
		srvc:     srvc,
		in:       bufio.NewScanner(in),
		out:      out,
		renderer: renderer,
		chartDir: ".",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run shows the main menu until Exit is chosen or the input ends.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(c.out, mainMenu)
		choice, err := c.prompt("Enter choice: ")
		if err != nil {
			return ignoreEOF(err)
		}

		// у каждого действия свой rqID
		actionCtx := utils.NewCtxWithRqID(ctx)

		switch choice {
		case "1":
			err = c.manageStocks(actionCtx)
		case "2":
			err = c.addDailyData(actionCtx)
		case "3":
			err = c.showReport(actionCtx)
		case "4":
			err = c.showChart(actionCtx)
		case "5":
			err = c.manageData(actionCtx)
		case "0":
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(c.out, "Invalid choice, try again.")
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (c *Console) manageStocks(ctx context.Context) error {
	for {
		fmt.Fprint(c.out, stocksMenu)
		choice, err := c.prompt("Enter choice: ")
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			err = c.addStock(ctx)
		case "2":
			err = c.updateShares(ctx)
		case "3":
			err = c.deleteStock(ctx)
		case "4":
			c.listStocks(ctx)
		case "0":
			return nil
		default:
			fmt.Fprintln(c.out, "Invalid choice, try again.")
		}

		if err != nil {
			return err
		}
	}
}

func (c *Console) manageData(ctx context.Context) error {
	for {
		fmt.Fprint(c.out, dataMenu)
		choice, err := c.prompt("Enter choice: ")
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			n, saveErr := c.srvc.Save(ctx)
			c.report(fmt.Sprintf("Saved %d stocks.", n), saveErr)
		case "2":
			n, loadErr := c.srvc.Load(ctx)
			c.report(fmt.Sprintf("Loaded %d stocks.", n), loadErr)
		case "3":
			err = c.retrieve(ctx)
		case "4":
			err = c.importFile(ctx)
		case "0":
			return nil
		default:
			fmt.Fprintln(c.out, "Invalid choice, try again.")
		}

		if err != nil {
			return err
		}
	}
}

func (c *Console) addStock(ctx context.Context) error {
	symbol, err := c.promptSymbol()
	if err != nil {
		return err
	}
	name, err := c.prompt("Enter company name: ")
	if err != nil {
		return err
	}
	shares, err := c.promptDecimal("Enter number of shares: ")
	if err != nil {
		return err
	}

	stock, err := c.srvc.AddStock(ctx, symbol, name, shares)
	if err == nil {
		c.report(fmt.Sprintf("Added %s.", report.Heading(stock)), nil)
		return nil
	}
	c.report("", err)
	return nil
}

func (c *Console) updateShares(ctx context.Context) error {
	symbol, err := c.promptSymbol()
	if err != nil {
		return err
	}
	kind, err := c.prompt("Buy or sell (b/s): ")
	if err != nil {
		return err
	}
	amount, err := c.promptDecimal("Enter number of shares: ")
	if err != nil {
		return err
	}

	var stock *model.Stock
	switch strings.ToLower(kind) {
	case "b", "buy":
		stock, err = c.srvc.Buy(ctx, symbol, amount)
	case "s", "sell":
		stock, err = c.srvc.Sell(ctx, symbol, amount)
	default:
		fmt.Fprintln(c.out, "Invalid choice, try again.")
		return nil
	}

	if err != nil {
		c.report("", err)
		return nil
	}
	c.report(report.Heading(stock), nil)
	return nil
}

func (c *Console) deleteStock(ctx context.Context) error {
	symbol, err := c.promptSymbol()
	if err != nil {
		return err
	}
	c.report(fmt.Sprintf("Deleted %s.", symbol), c.srvc.DeleteStock(ctx, symbol))
	return nil
}

func (c *Console) listStocks(ctx context.Context) {
	stocks := c.srvc.List(ctx)
	if len(stocks) == 0 {
		fmt.Fprintln(c.out, "No stocks in the portfolio.")
		return
	}

	fmt.Fprintln(c.out, "\nStock List")
	fmt.Fprintln(c.out, "----------")
	for _, stock := range stocks {
		fmt.Fprintf(c.out, "%-8s %s\n", stock.Symbol(), report.Heading(stock))
	}
}

func (c *Console) addDailyData(ctx context.Context) error {
	symbol, err := c.promptSymbol()
	if err != nil {
		return err
	}
	date, err := c.promptDate("Enter date (YYYY-MM-DD): ")
	if err != nil {
		return err
	}
	closePrice, err := c.promptDecimal("Enter closing price: ")
	if err != nil {
		return err
	}
	volumeText, err := c.prompt("Enter volume: ")
	if err != nil {
		return err
	}
	volume, err := strconv.ParseInt(volumeText, 10, 64)
	if err != nil {
		c.report("", fmt.Errorf("%w: volume %q", model.ErrInvalidArgument, volumeText))
		return nil
	}

	c.report("Daily data added.", c.srvc.AddDailyData(ctx, symbol, date, closePrice, volume))
	return nil
}

func (c *Console) showReport(ctx context.Context) error {
	symbol, err := c.promptSymbol()
	if err != nil {
		return err
	}

	md, err := c.srvc.ReportMarkdown(ctx, symbol)
	if err != nil {
		c.report("", err)
		return nil
	}

	rendered, err := c.renderer.Render(md)
	if err != nil {
		slog.Warn("can't render markdown", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		rendered = md
	}
	fmt.Fprint(c.out, rendered)
	return nil
}

func (c *Console) showChart(ctx context.Context) error {
	symbol, err := c.promptSymbol()
	if err != nil {
		return err
	}

	fileBytes, filename, err := c.srvc.Chart(ctx, symbol)
	if err != nil {
		c.report("", err)
		return nil
	}

	path := filepath.Join(c.chartDir, filename)
	if err = os.WriteFile(path, fileBytes, 0o644); err != nil {
		c.report("", err)
		return nil
	}

	c.report("Chart saved to "+path, nil)
	return nil
}

func (c *Console) retrieve(ctx context.Context) error {
	from, err := c.promptDate("Enter start date (YYYY-MM-DD): ")
	if err != nil {
		return err
	}
	to, err := c.promptDate("Enter end date (YYYY-MM-DD): ")
	if err != nil {
		return err
	}

	added, err := c.srvc.FetchHistory(ctx, from, to)
	c.report(fmt.Sprintf("Retrieved %d new daily samples.", added), err)
	return nil
}

func (c *Console) importFile(ctx context.Context) error {
	symbol, err := c.promptSymbol()
	if err != nil {
		return err
	}
	path, err := c.prompt("Enter CSV file path: ")
	if err != nil {
		return err
	}

	added, err := c.srvc.ImportHistoryFile(ctx, symbol, path)
	c.report(fmt.Sprintf("Imported %d daily samples.", added), err)
	return nil
}

// report prints msg on success or the error otherwise.
func (c *Console) report(msg string, err error) {
	if err != nil {
		fmt.Fprintf(c.out, "Error: %s\n", errorText(err))
		return
	}
	fmt.Fprintln(c.out, msg)
}

func (c *Console) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}

func (c *Console) promptSymbol() (string, error) {
	symbol, err := c.prompt("Enter stock symbol: ")
	return strings.ToUpper(symbol), err
}

// promptDecimal asks again until the input is a number.
func (c *Console) promptDecimal(label string) (decimal.Decimal, error) {
	for {
		text, err := c.prompt(label)
		if err != nil {
			return decimal.Zero, err
		}
		d, err := decimal.NewFromString(text)
		if err == nil {
			return d, nil
		}
		fmt.Fprintln(c.out, "Please enter a number.")
	}
}

func (c *Console) promptDate(label string) (time.Time, error) {
	for {
		text, err := c.prompt(label)
		if err != nil {
			return time.Time{}, err
		}
		date, err := model.ParseDate(text)
		if err == nil {
			return date, nil
		}
		fmt.Fprintln(c.out, "Please enter a date as YYYY-MM-DD.")
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func errorText(err error) string {
	switch {
	case errors.Is(err, model.ErrDuplicateSymbol):
		return "stock already exists"
	case errors.Is(err, model.ErrNotFound):
		return "stock not found"
	case errors.Is(err, model.ErrInsufficientShares):
		return "not enough shares"
	case errors.Is(err, model.ErrDuplicateDate):
		return "data for this date already exists"
	default:
		return err.Error()
	}
}
