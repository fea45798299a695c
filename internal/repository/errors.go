package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness rule or
	// a conditional update lost against a concurrent change.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientDays is returned when a vacation period cannot cover an approval.
	ErrInsufficientDays = errors.New("insufficient vacation days")
	// ErrOverlapping is returned when a vacation request shares days with a pending or approved one.
	ErrOverlapping = errors.New("overlapping vacation request")
)
