package tgCallback

// Callbacks buttons uniques, payload is the stock symbol
const (
	SelectStock string = "select_stock" // открыть карточку акции
	BackToList  string = "back_to_list"
	Report      string = "stock_report"
	Chart       string = "stock_chart"
	History     string = "stock_history"
	BuyStock    string = "buy_stock"
	SellStock   string = "sell_stock"
	ImportCSV   string = "import_csv"
	DeleteStock string = "delete_stock"
)
