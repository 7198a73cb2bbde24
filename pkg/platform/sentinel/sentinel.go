package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches and queues return these
// (optionally wrapped) so services can translate them into coded domain errors.
//
//   - ErrNotFound: entity does not exist in the store
//   - ErrConflict: write collided with an existing record
//   - ErrUnavailable: backing service temporarily unreachable
//   - ErrClosed: component was shut down and refuses new work
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)
