package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidImport   = errors.New("invalid import data")
	ErrNothingToExport = errors.New("nothing to export")
)
