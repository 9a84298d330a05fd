package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrNotFound = errors.New("no stored value")
	ErrClosed   = errors.New("store is closed")
	ErrCorrupt  = errors.New("stored payload cannot be decoded")
)
