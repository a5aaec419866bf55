package store

import "errors"

var (
	ErrNotFound          = errors.New("candidate not found")
	ErrInvalidTransition = errors.New("invalid sync status transition")
)
