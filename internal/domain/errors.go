package domain

import "errors"

var (
	// ErrInvalidInput marks caller errors. They are reported verbatim and never reach storage.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable marks transient infrastructure failures of a storage engine.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrStorageRejected marks a write refused by a storage engine as malformed
	// or duplicate. Upstream validation should make this unreachable.
	ErrStorageRejected = errors.New("storage rejected record")
)

// ValidationError carries the caller-facing reason for an ErrInvalidInput.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Is reports ValidationError as ErrInvalidInput so callers can use errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
