package pool

import (
	"errors"
	"fmt"
	"time"
)

// ConnectError reports that the transport to an instance could not be
// established or re-established.
type ConnectError struct {
	InstanceID string
	Err        error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("cannot reach instance %s: %v", e.InstanceID, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TimeoutError reports that no correlated response arrived within the
// per-attempt budget.
type TimeoutError struct {
	InstanceID string
	Timeout    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("instance %s did not respond within %s", e.InstanceID, e.Timeout)
}

// RetryBudgetError reports that every attempt failed on a transient
// condition. It carries the retryable hint: the caller may usefully retry
// the same logical command.
type RetryBudgetError struct {
	InstanceID string
	Attempts   int
	Err        error
}

func (e *RetryBudgetError) Error() string {
	return fmt.Sprintf("instance %s unavailable after %d attempts: %v", e.InstanceID, e.Attempts, e.Err)
}

func (e *RetryBudgetError) Unwrap() error { return e.Err }

// IsRetryBudget reports whether err signals an exhausted retry budget.
func IsRetryBudget(err error) bool {
	var budget *RetryBudgetError
	return errors.As(err, &budget)
}

// ErrUnknownInstance is returned when an id has no record in the registry
// snapshot backing the pool.
var ErrUnknownInstance = errors.New("pool: unknown instance id")
