package rating

import (
	"errors"
	"strings"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrMissingDimension = errors.New("missing dimension")
	ErrScoreOutOfRange  = errors.New("score out of range")
	ErrMalformedRecord  = errors.New("malformed rating record")
	ErrInvalidPolicy    = errors.New("invalid rating policy")
	ErrNeedsReview      = errors.New("needs human review")
)

// MissingDimensionError lists the dimensions absent from a score set, in
// canonical order.
type MissingDimensionError struct {
	Missing []Dimension
}

func (e *MissingDimensionError) Error() string {
	names := make([]string, len(e.Missing))
	for i, d := range e.Missing {
		names[i] = string(d)
	}
	return ErrMissingDimension.Error() + ": " + strings.Join(names, ", ")
}

// Is reports ErrMissingDimension as the error kind.
func (e *MissingDimensionError) Is(target error) bool {
	return target == ErrMissingDimension
}
