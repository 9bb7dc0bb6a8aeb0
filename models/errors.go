package models

import (
	"errors"
	"fmt"
)

// Domain errors shared by the engines and the persistence layer.
var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrGroupClosed     = errors.New("group is closed")
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")

	// ErrStatusConflict means the order status changed between the read and
	// the write; the caller's view is stale.
	ErrStatusConflict = errors.New("order status changed concurrently")

	// ErrInvalidInput marks validation failures surfaced as 400s. Wrap it
	// with context: fmt.Errorf("...: %w", models.ErrInvalidInput).
	ErrInvalidInput = errors.New("invalid input")
)

// InvalidTransitionError names both ends of a move the transition table
// rejects.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.From, e.To)
}
