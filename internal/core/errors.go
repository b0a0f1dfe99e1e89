package core

import "errors"

// Failure taxonomy. Callers match with errors.Is.
var (
	ErrStorageOpen         = errors.New("storage open failed")
	ErrStorageWrite        = errors.New("storage write failed")
	ErrStorageRead         = errors.New("storage read failed")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidRange        = errors.New("invalid year or month")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

// Field-level causes, always wrapped together with ErrInvalidInput.
var (
	ErrMissingSum       = errors.New("missing sum")
	ErrMissingCurrency  = errors.New("missing currency")
	ErrMissingCategory  = errors.New("missing category")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidSum       = errors.New("invalid sum")
	ErrUnknownCurrency  = errors.New("unknown currency")
	ErrUnknownCategory  = errors.New("unknown category")
)
