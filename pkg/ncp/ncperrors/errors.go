// Package ncperrors defines the error taxonomy shared across the device
// model, control protocol session and access-token validator. Each error
// class maps to exactly one of the MethodResult statuses or session/validator
// outcomes; call sites wrap these with fmt.Errorf("...: %w", ...) rather than
// inventing ad-hoc error strings.
package ncperrors

import "errors"

var (
	// ErrParse covers malformed JSON or SDP input.
	ErrParse = errors.New("parse error")

	// ErrSchema covers structurally valid input that violates an envelope
	// or token schema.
	ErrSchema = errors.New("schema error")

	// ErrNotFound covers an oid, property, method or event id that does
	// not exist.
	ErrNotFound = errors.New("not found")

	ErrReadOnly        = errors.New("read only")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrConflict        = errors.New("conflict")
	ErrLocked          = errors.New("locked")
	ErrParameterError  = errors.New("parameter error")
	ErrIndexOutOfBound = errors.New("index out of bounds")
	ErrBufferOverflow  = errors.New("buffer overflow")

	// ErrConstraintViolation is surfaced to the protocol edge as
	// ParameterError.
	ErrConstraintViolation = errors.New("constraint violation")

	ErrUnauthorized      = errors.New("unauthorized")
	ErrInsufficientScope = errors.New("insufficient scope")

	// ErrNoMatchingKeys is transient: it signals the embedder should
	// refresh the issuer's key set.
	ErrNoMatchingKeys = errors.New("no matching keys")

	ErrNotReady    = errors.New("not ready")
	ErrTimeout     = errors.New("timeout")
	ErrDeviceError = errors.New("device error")
)
