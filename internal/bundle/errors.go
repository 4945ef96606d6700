package bundle

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientQuantity reports that no cart line can supply a component's required quantity.
	ErrInsufficientQuantity = errors.New("bundle: insufficient quantity")
	// ErrMalformedDefinition is returned when a bundle definition is rejected at catalog construction.
	ErrMalformedDefinition = errors.New("bundle: malformed definition")
	// ErrUnknownLine indicates a consume against a line id the inventory never held.
	ErrUnknownLine = errors.New("bundle: unknown cart line")
	// ErrInvalidQuantity is returned for negative line quantities or non-positive consumption.
	ErrInvalidQuantity = errors.New("bundle: invalid quantity")
	// ErrDuplicateLine is returned when a snapshot carries the same line id twice.
	ErrDuplicateLine = errors.New("bundle: duplicate cart line")
	// ErrInvalidLine is returned when a snapshot line is missing its identifier.
	ErrInvalidLine = errors.New("bundle: invalid cart line")
	// ErrInvariantViolation aborts a resolution pass whose bookkeeping no longer holds.
	ErrInvariantViolation = errors.New("bundle: invariant violation")
)

// DefinitionError describes why a definition was rejected.
type DefinitionError struct {
	Index  int
	Parent string
	Reason string
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("bundle: definition %d (parent %q): %s", e.Index, e.Parent, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedDefinition.
func (e *DefinitionError) Unwrap() error { return ErrMalformedDefinition }

// UnmatchedError names the component that failed a match.
type UnmatchedError struct {
	Variant  string
	Required int64
}

// Error implements the error interface.
func (e *UnmatchedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("bundle: no cart line for variant %q with quantity >= %d", e.Variant, e.Required)
}

// Unwrap lets errors.Is match ErrInsufficientQuantity.
func (e *UnmatchedError) Unwrap() error { return ErrInsufficientQuantity }
