package integrity

import (
	"errors"
	"fmt"
)

// ErrIntegrityMismatch matches every IntegrityMismatchError via errors.Is.
var ErrIntegrityMismatch = errors.New("integrity mismatch")

// IntegrityMismatchError reports a seal that failed verification.
type IntegrityMismatchError struct {
	Payload string
	Reason  string
}

func (e *IntegrityMismatchError) Error() string {
	return fmt.Sprintf("integrity mismatch: %s (payload %q)", e.Reason, e.Payload)
}

func (e *IntegrityMismatchError) Is(target error) bool { return target == ErrIntegrityMismatch }
