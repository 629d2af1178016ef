package model

import "errors"

var (
	ErrDuplicateSymbol    = errors.New("error duplicate symbol")
	ErrNotFound           = errors.New("error not found")
	ErrInsufficientShares = errors.New("error insufficient shares")
	ErrInvalidArgument    = errors.New("error invalid argument")
	ErrDivisionUndefined  = errors.New("error division undefined")
	ErrDuplicateDate      = errors.New("error duplicate date")
	ErrParse              = errors.New("error parse")
	ErrSourceUnavailable  = errors.New("error source unavailable")
)
