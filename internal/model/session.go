package model

type Action int

const (
	DefaultAction Action = iota
	ExpectingHistoryFile
	ExpectingBuyAmount
	ExpectingSellAmount
)

// Session is the per-chat state of the telegram dialog: the selected stock and the pending input.
type Session struct {
	Action Action
	Symbol string
}
