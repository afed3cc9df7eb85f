package shm

import "errors"

var (
	ErrInvalidSettings = errors.New("shm: invalid settings")
	ErrSegmentNotFound = errors.New("shm: segment not found")
	ErrHeaderMismatch  = errors.New("shm: header mismatch")
	ErrCapability      = errors.New("shm: capability not enabled")
	ErrSizeMismatch    = errors.New("shm: payload size mismatch")
	ErrTornRead        = errors.New("shm: torn read, retries exhausted")
	ErrNotActive       = errors.New("shm: segment not active")
	ErrNotWriter       = errors.New("shm: role is not the designated writer")
	ErrOutOfBounds     = errors.New("shm: offset out of bounds")
	ErrMisaligned      = errors.New("shm: offset is not aligned")
)

// ErrWriterBusy is returned when another writer holds the frame counter for
// longer than the configured write wait.
var ErrWriterBusy = errors.New("shm: another write is in progress")
