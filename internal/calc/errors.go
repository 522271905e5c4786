package calc

import (
	"errors"
	"fmt"
	"math"
)

// ErrorKind categorizes calculation errors.
type ErrorKind string

const (
	// KindInvalidInput covers non-numeric, negative or out-of-range inputs.
	KindInvalidInput ErrorKind = "invalid_input"

	// KindInvalidUnit covers unit strings that are not recognized for the
	// quantity being entered.
	KindInvalidUnit ErrorKind = "invalid_unit"

	// KindDomain covers valid numbers that describe an impossible
	// preparation, e.g. a target concentration above the stock.
	KindDomain ErrorKind = "domain_error"
)

// Error is returned by every calculator in this package.
type Error struct {
	Kind ErrorKind

	// Field names the offending input when known (JSON name).
	Field string

	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalidInput(field, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Message: fmt.Sprintf(format, args...)}
}

func invalidUnit(field string, err error) *Error {
	return &Error{Kind: KindInvalidUnit, Field: field, Message: err.Error(), Err: err}
}

func domainError(format string, args ...any) *Error {
	return &Error{Kind: KindDomain, Message: fmt.Sprintf(format, args...)}
}

// checkRange rejects results that overflowed to ±Inf or became NaN.
// Finite inputs can still multiply past the float64 range.
func checkRange(values ...float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domainError("result is out of range; check the magnitude of the inputs")
		}
	}
	return nil
}

// KindOf returns the ErrorKind of err, or "" if err is not a calc error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsInvalidInput reports whether err is an invalid-input error.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }

// IsInvalidUnit reports whether err is an invalid-unit error.
func IsInvalidUnit(err error) bool { return KindOf(err) == KindInvalidUnit }

// IsDomain reports whether err is a domain error.
func IsDomain(err error) bool { return KindOf(err) == KindDomain }
