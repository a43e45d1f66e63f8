package repository

import "errors"

var (
	// ErrEventNotFound is returned when an event ID is unknown.
	ErrEventNotFound = errors.New("event not found")
)
