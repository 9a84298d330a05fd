package model

import "time"

// Submission is a record accepted for asynchronous ingestion.
type Submission struct {
	ID         string    // idempotency key; empty when the client sent none
	Record     RawRecord // plaintext input; dropped once folded
	ReceivedAt time.Time
}
