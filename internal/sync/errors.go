package sync

import "fmt"

// NetworkError is a transport-level failure: DNS, connection refused,
// timeout. Always retryable.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError means the remote responded but rejected the request. 5xx
// statuses retry up to the attempt ceiling; 4xx statuses indicate a payload
// defect and fail fast.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string { return fmt.Sprintf("server returned status %d", e.Status) }

// Retryable reports whether the rejection is worth another attempt.
func (e *ServerError) Retryable() bool { return e.Status >= 500 }

// DatabaseError is a local store failure. The failed item keeps its pending
// state (no transition committed) and is retried on the next cycle.
type DatabaseError struct {
	Err error
}

func (e *DatabaseError) Error() string { return fmt.Sprintf("database error: %v", e.Err) }
func (e *DatabaseError) Unwrap() error { return e.Err }

// SerializationError means a payload could not be encoded or decoded. This is
// a programming defect, not a transient condition.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string { return fmt.Sprintf("serialization error: %v", e.Err) }
func (e *SerializationError) Unwrap() error { return e.Err }
