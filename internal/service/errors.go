package service

import "errors"

var (
	ErrStorageUnavailable = errors.New("error storage unavailable")
	ErrUploadDisabled     = errors.New("error upload disabled")
	ErrEmptyPortfolio     = errors.New("error empty portfolio")
)
