package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnhealthy is returned when the health check does not answer 200.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrUnordered is returned when a ratings listing is not ranked.
	ErrUnordered = errors.New("ratings not ordered")
)

// StatusError is a non-success response from the rating service.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("status %d %s: %s", e.Status, e.Code, e.Message)
}
