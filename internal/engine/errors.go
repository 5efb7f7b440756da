package engine

import "errors"

var (
	// ErrClosed is returned for work submitted to, or cancelled by, a
	// simulation that is shutting down.
	ErrClosed = errors.New("simulation closed")

	// ErrNoHost is returned when no plant can take a pest.
	ErrNoHost = errors.New("no plant can host a pest")

	// ErrUnknownPest is returned for a pest kind no species is vulnerable to.
	ErrUnknownPest = errors.New("unknown pest")

	// ErrNoSoil is returned when random planting finds no bare soil.
	ErrNoSoil = errors.New("no empty soil")

	// ErrInvalidSize is returned for a non-positive garden size.
	ErrInvalidSize = errors.New("invalid garden size")

	// ErrDuplicateCell marks a seed entry for a cell an earlier entry
	// already planted.
	ErrDuplicateCell = errors.New("cell already seeded")
)

// ErrFault wraps a panic recovered from a simulation step. The step's
// changes were rolled back.
var ErrFault = errors.New("simulation step failed")
