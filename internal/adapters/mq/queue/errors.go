package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("audit queue full")
	ErrClosed = errors.New("audit queue closed")
)
