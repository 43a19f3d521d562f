package statestore

import "fmt"

// UnavailableError indicates the coordination store itself could not be
// reached. Callers in the gateway treat this as "never degraded": mode and
// failure tracking silently no-op rather than taking the read path down.
type UnavailableError struct {
	Op  string
	Err error
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("state store unavailable during %s: %v", e.Op, e.Err)
}

func (e UnavailableError) Unwrap() error {
	return e.Err
}
