package task

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrProcessNotFound is returned by Signal when the target process no
// longer exists. A process can vanish between task creation and signal
// delivery; that race is inherent to pid-based identity and is surfaced
// rather than retried.
var ErrProcessNotFound = errors.New("process not found")

// SignalError is a genuine signal delivery failure: an invalid signal
// number or insufficient permission on the target. Process absence is
// never a SignalError; it maps to ErrProcessNotFound.
type SignalError struct {
	Pid    int
	Signal string
	Err    error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("signal %s to pid %d: %v", e.Signal, e.Pid, e.Err)
}

func (e *SignalError) Unwrap() error {
	return e.Err
}
