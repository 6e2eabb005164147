package artifact

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced artifact ID does not exist.
// It is always fatal to the operation and never retried.
var ErrNotFound = errors.New("artifact not found")

// ValidationError reports a malformed input artifact: missing required
// fields, broken references, or dependency cycles. It is surfaced before
// any mutation - a failing validation never partially applies.
type ValidationError struct {
	ArtifactID string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.ArtifactID == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.ArtifactID, e.Reason)
}

// notFound wraps ErrNotFound with the offending ID.
func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
