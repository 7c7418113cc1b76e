package binread

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the decoders in this module matches
// exactly one of these with errors.Is.
var (
	// ErrTruncatedInput is returned when fewer bytes remain than a mandatory
	// field requires.
	ErrTruncatedInput = errors.New("truncated input")

	// ErrCorruptPayload is returned for a record that cannot be decoded: a
	// partial record header, a short payload or a payload whose length does
	// not match its layout.
	ErrCorruptPayload = errors.New("corrupt payload")

	// ErrConsumerAborted is returned when the per-record consumer stops the
	// decode by returning an error.
	ErrConsumerAborted = errors.New("consumer aborted")
)

// DecodeError describes where and why a decode stopped.
type DecodeError struct {
	Kind   error // one of the Err* kinds above
	Offset int64 // bytes consumed from the source when the error occurred
	Msg    string
	Err    error // underlying cause, may be nil
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	s := fmt.Sprintf("%v at offset %d", e.Kind, e.Offset)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil && e.Err != e.Kind {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the kind and the cause, so errors.Is matches either.
func (e *DecodeError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Errorf builds a *DecodeError of the given kind.
func Errorf(kind error, offset int64, cause error, format string, args ...any) error {
	return &DecodeError{
		Kind:   kind,
		Offset: offset,
		Msg:    fmt.Sprintf(format, args...),
		Err:    cause,
	}
}
