package usecase

import "fmt"

// PersistenceError means the payment record itself could not be read or written. The
// provider is expected to retry the delivery.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }
