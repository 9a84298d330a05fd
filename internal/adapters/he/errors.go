package he

import "errors"

// Sentinel kinds for homomorphic operation errors.
var (
	ErrCapacityExceeded     = errors.New("vector exceeds slot capacity")
	ErrEmptyInput           = errors.New("empty ciphertext list")
	ErrContextFailure       = errors.New("cryptographic context failure")
	ErrNoiseBudgetExhausted = errors.New("ciphertext noise budget exhausted")
	ErrTimeout              = errors.New("operation deadline exceeded")
	ErrInvalidCiphertext    = errors.New("invalid ciphertext")
)
