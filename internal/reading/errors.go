package reading

import (
	"errors"
	"fmt"
)

var (
	// ErrFieldMissing happens when the record has no such key.
	ErrFieldMissing = errors.New("field is missing")

	// ErrFieldNull happens when the key is present but the value is null.
	ErrFieldNull = errors.New("field is null")

	// ErrFieldNotNumeric happens when the value can not be parsed as a finite float.
	ErrFieldNotNumeric = errors.New("field is not numeric")
)

// MalformedInputError is returned by Decode when the payload is not
// a UTF-8 encoded JSON object. Unlike a failed validation it is never
// swallowed by the transformation and has to be handled by the caller.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err == nil {
		return "malformed input: " + e.Reason
	}
	return fmt.Sprintf("malformed input: %s: %v", e.Reason, e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// IsMalformedInput reports whether any error in err's chain is a MalformedInputError.
func IsMalformedInput(err error) bool {
	var m *MalformedInputError
	return errors.As(err, &m)
}

// FieldError describes why a single measurement could not be parsed.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
