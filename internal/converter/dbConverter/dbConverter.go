package dbConverter

import (
	"fmt"

	"github.com/KotFed0t/stock_manager/internal/model"
	"github.com/KotFed0t/stock_manager/internal/model/dbModel"
)

func ConvertStock(dbStock dbModel.Stock, dbHistory []dbModel.DailyData) (*model.Stock, error) {
	stock, err := model.NewStock(dbStock.Symbol, dbStock.Name, dbStock.Shares)
	if err != nil {
		return nil, fmt.Errorf("stock %q: %w", dbStock.Symbol, err)
	}

	history := make([]model.DailyData, 0, len(dbHistory))
	for _, row := range dbHistory {
		d, err := model.NewDailyData(row.TradeDate, row.Close, row.Volume)
		if err != nil {
			return nil, fmt.Errorf("stock %q daily data: %w", dbStock.Symbol, err)
		}
		history = append(history, d)
	}

	if _, err = stock.MergeHistory(history); err != nil {
		return nil, fmt.Errorf("stock %q daily data: %w", dbStock.Symbol, err)
	}

	return stock, nil
}

func ConvertToDBStock(stock *model.Stock, ordinal int) dbModel.Stock {
	return dbModel.Stock{
		Symbol:  stock.Symbol(),
		Name:    stock.Name(),
		Shares:  stock.Shares(),
		Ordinal: ordinal,
	}
}

func ConvertToDBDailyData(stock *model.Stock) []dbModel.DailyData {
	history := stock.History()
	res := make([]dbModel.DailyData, 0, len(history))
	for i, d := range history {
		res = append(res, dbModel.DailyData{
			Symbol:    stock.Symbol(),
			TradeDate: d.Date(),
			Close:     d.Close(),
			Volume:    d.Volume(),
			Ordinal:   i,
		})
	}
	return res
}
