package types

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is matched by every *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNotFound is returned for unknown node IDs.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for rejected parameters such as k <= 0
	// or a malformed index configuration.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEmptyIndex is returned when searching an index with no vectors.
	ErrEmptyIndex = errors.New("index is empty")
)

// DimensionMismatchError reports a vector whose length differs from the
// dimension fixed for the store or index.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is lets errors.Is(err, ErrDimensionMismatch) succeed.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// NewDimensionMismatch builds a *DimensionMismatchError.
func NewDimensionMismatch(expected, actual int) error {
	return &DimensionMismatchError{Expected: expected, Actual: actual}
}

// NodeNotFoundError reports an unknown internal ID.
type NodeNotFoundError struct {
	ID uint32
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %d not found", e.ID)
}

func (e *NodeNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNodeNotFound builds a *NodeNotFoundError.
func NewNodeNotFound(id uint32) error {
	return &NodeNotFoundError{ID: id}
}

// InvalidArgumentf formats a message and wraps ErrInvalidArgument.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
