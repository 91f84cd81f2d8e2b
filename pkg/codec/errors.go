package codec

import (
	"errors"
	"fmt"

	"github.com/rhuss/modelserve/pkg/api"
)

var (
	ErrTruncated          = errors.New("codec: truncated input")
	ErrUnknownTag         = errors.New("codec: unknown tag")
	ErrUnexpectedTag      = errors.New("codec: unexpected tag")
	ErrTrailingBytes      = errors.New("codec: trailing bytes")
	ErrInvalidPayload     = errors.New("codec: invalid payload")
	ErrTooDeep            = errors.New("codec: nesting too deep")
	ErrBadMagic           = errors.New("codec: bad frame magic")
	ErrUnsupportedVersion = errors.New("codec: unsupported frame version")
	ErrFrameTooLarge      = errors.New("codec: frame too large")
	ErrCorruptPayload     = errors.New("codec: corrupt compressed payload")
)

// DecodeError describes malformed input. Offset is the byte position at
// which decoding failed and Tag the tag byte being decoded, if any.
type DecodeError struct {
	Offset int
	Tag    byte
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("codec: %s at offset %d", e.Reason, e.Offset)
	if e.Tag != 0 {
		msg += fmt.Sprintf(" (tag 0x%02x)", e.Tag)
	}
	if e.Err != nil && !isSentinel(e.Err) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrorType implements api.Typed.
func (e *DecodeError) ErrorType() api.ErrorType { return api.ErrorTypeInvalidRequest }

func isSentinel(err error) bool {
	switch err {
	case ErrTruncated, ErrUnknownTag, ErrUnexpectedTag, ErrTrailingBytes, ErrInvalidPayload,
		ErrTooDeep, ErrBadMagic, ErrUnsupportedVersion, ErrFrameTooLarge, ErrCorruptPayload:
		return true
	}
	return false
}
