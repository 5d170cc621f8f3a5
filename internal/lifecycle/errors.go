package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOperation is returned when an action is not allowed for
	// the complaint's current state or its input is incomplete. The
	// caller must correct the request; retrying does not help.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrConflict is returned when an operation kept losing the
	// optimistic-concurrency race and ran out of retries. The whole
	// operation is safe to retry.
	ErrConflict = errors.New("complaint is being modified concurrently, retry")
)

// ThrottledError is returned when a public no-progress update arrives
// before the minimum gap since the previous one has elapsed.
type ThrottledError struct {
	RemainingDays int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("Please wait %d more day(s) before adding another update.", e.RemainingDays)
}
