package domain

import (
	"errors"
	"fmt"
)

// Store errors
var (
	ErrListingNotFound = errors.New("listing not found")
	ErrConflict        = errors.New("listing was modified concurrently")
)

// Lifecycle errors
var (
	ErrPassInFlight      = errors.New("lifecycle pass already in flight")
	ErrLeaseNotHeld      = errors.New("lifecycle lease held by another instance")
	ErrInvalidTransition = errors.New("invalid listing status transition")
)

// SkippedListingsError is returned by FindActionable together with the
// listings that did decode. Each entry of Errs is one skipped listing.
type SkippedListingsError struct {
	Errs []error
}

// NewSkippedListingsError returns nil when errs is empty.
func NewSkippedListingsError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &SkippedListingsError{Errs: errs}
}

func (e *SkippedListingsError) Skipped() int { return len(e.Errs) }

func (e *SkippedListingsError) Error() string {
	return fmt.Sprintf("skipped %d undecodable listing(s): %v", len(e.Errs), errors.Join(e.Errs...))
}

func (e *SkippedListingsError) Unwrap() []error { return e.Errs }
