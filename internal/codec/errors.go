package codec

import (
	"errors"
	"fmt"
)

// ErrShortPayload is matched by every LengthError
var ErrShortPayload = errors.New("payload too short")

// LengthError reports a characteristic value shorter than its layout
type LengthError struct {
	Field string
	Want  int
	Got   int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s: need %d bytes, got %d", e.Field, e.Want, e.Got)
}

func (e *LengthError) Unwrap() error {
	return ErrShortPayload
}

func need(field string, b []byte, n int) error {
	if len(b) < n {
		return &LengthError{Field: field, Want: n, Got: len(b)}
	}
	return nil
}
