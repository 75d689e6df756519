package helper

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the core wraps exactly one of these,
// so callers can branch with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrEncoding      = errors.New("encoding error")
	ErrDecoding      = errors.New("decoding error")
	ErrShape         = errors.New("shape mismatch")
)

// Error wraps an underlying error with the operation that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the operation name. A nil err stays nil.
func NewError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// ConfigurationError reports a fatal construction-time problem.
func ConfigurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ShapeError reports inconsistent dimensions or names between inputs and the model.
func ShapeError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShape, fmt.Sprintf(format, args...))
}

// EncodingError reports a raw value a field codec could not interpret.
func EncodingError(field string, raw any, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: field '%s' could not interpret value '%v'", ErrEncoding, field, raw)
	}
	return fmt.Errorf("%w: field '%s' could not interpret value '%v': %v", ErrEncoding, field, raw, cause)
}

// DecodingError reports an encoded value missing from a field's learned lookup.
func DecodingError(field string, value any, vocabularySize int) error {
	return fmt.Errorf("%w: field '%s' could not decode value '%v' (vocabulary size %d)", ErrDecoding, field, value, vocabularySize)
}
