package types

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a vector length disagrees with the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrMetadataDesync is returned when vectors and metadata no longer line up.
	ErrMetadataDesync = errors.New("metadata out of sync with vectors")

	// ErrExternalService is returned when an embedding or generation call fails.
	ErrExternalService = errors.New("external service error")

	// ErrMalformedRecord is returned when a structured record lacks a required field.
	ErrMalformedRecord = errors.New("malformed record")
)

// OpError wraps an error with the operation that produced it.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("hybridrag: %v", e.Err)
	}
	return fmt.Sprintf("hybridrag: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// WrapOp wraps err with operation context; nil stays nil.
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// ExternalError tags err as a collaborator failure while keeping the cause reachable.
func ExternalError(service string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: service, Err: fmt.Errorf("%w: %w", ErrExternalService, err)}
}
