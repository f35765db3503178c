package queue

import "errors"

var (
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("queue: closed")

	// ErrInvalidPriority is returned by ParsePriority for an unknown name.
	ErrInvalidPriority = errors.New("queue: invalid priority")
)
