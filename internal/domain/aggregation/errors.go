package aggregation

import "errors"

// Sentinel errors returned by the Store.
var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownPeriod   = errors.New("unknown period")
	ErrKeyMismatch     = errors.New("state was encrypted under a different key set")
	ErrPersist         = errors.New("persist aggregation state")
)
