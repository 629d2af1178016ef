package moexModel

type RawHistory struct {
	History Table `json:"history"`
	Cursor  Table `json:"history.cursor"`
}

type RawSecurities struct {
	Securities Table `json:"securities"`
}

type Table struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

type Cursor struct {
	Index    int64
	Total    int64
	PageSize int64
}

// Done сообщает, что страниц больше нет.
func (c Cursor) Done() bool {
	return c.PageSize <= 0 || c.Index+c.PageSize >= c.Total
}

type SecurityInfo struct {
	Ticker    string
	Shortname string
}
