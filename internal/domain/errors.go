package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error classes. Per-record errors match one of these with errors.Is so callers
// can count rejects without switching on concrete types.
var (
	// ErrValidation marks a record that is malformed (missing, out of range, inconsistent).
	ErrValidation = errors.New("validation error")

	// ErrReference marks a record whose natural key does not resolve to a dimension key.
	ErrReference = errors.New("reference error")
)

// InvalidRangeError is returned when a date range is empty or reversed.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s",
		e.Start.Format(DateLayout), e.End.Format(DateLayout))
}

// InvalidParameterError is returned when a numeric parameter is outside its domain.
type InvalidParameterError struct {
	Name   string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Name, e.Value, e.Reason)
}

// MissingFieldError reports a required staging field that is absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// Is reports class membership.
func (e *MissingFieldError) Is(target error) bool { return target == ErrValidation }

// UnknownReferenceError reports a natural key that has no dimension key.
type UnknownReferenceError struct {
	Kind DimensionKind
	Key  string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Key)
}

// Is reports class membership.
func (e *UnknownReferenceError) Is(target error) bool { return target == ErrReference }

// OutOfRangeError reports a measure outside its accepted bounds.
type OutOfRangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s=%v out of range [%v, %v)", e.Field, e.Value, e.Min, e.Max)
}

// Is reports class membership.
func (e *OutOfRangeError) Is(target error) bool { return target == ErrValidation }

// InconsistentDataError reports measures that contradict each other.
type InconsistentDataError struct {
	Rule string
}

func (e *InconsistentDataError) Error() string {
	return "inconsistent data: " + e.Rule
}

// Is reports class membership.
func (e *InconsistentDataError) Is(target error) bool { return target == ErrValidation }

// ConnectionError wraps a transient storage or network failure. It is retryable.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IntegrityError wraps a constraint violation raised by storage.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error during %s: %v", e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// ConfigurationError reports missing or invalid settings detected before a run starts.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// RejectReason returns a short label for a per-record error, used to bucket
// rejects in job details.
func RejectReason(err error) string {
	var (
		missing      *MissingFieldError
		unknown      *UnknownReferenceError
		outOfRange   *OutOfRangeError
		inconsistent *InconsistentDataError
		integrity    *IntegrityError
	)
	switch {
	case errors.As(err, &missing):
		return "missing_field"
	case errors.As(err, &unknown):
		return "unknown_reference"
	case errors.As(err, &outOfRange):
		return "out_of_range"
	case errors.As(err, &inconsistent):
		return "inconsistent_data"
	case errors.As(err, &integrity):
		return "integrity"
	default:
		return "load_error"
	}
}
