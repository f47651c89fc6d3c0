// Package errors provides the tagged error-code type used across the
// packaging core. Every public operation returns one of these codes
// instead of an ad-hoc sentinel so callers can branch with GetErrorCode
// without string-matching error messages.
package errors

import (
	"fmt"
)

// ErrorCode identifies the kind of failure, per the taxonomy of the
// packaging core's error handling design.
type ErrorCode int

const (
	// ErrCodeUnknown covers errors not produced by this module.
	ErrCodeUnknown ErrorCode = iota

	// CodeNotActive is returned for operations attempted after Finish().
	CodeNotActive

	// CodeNoFramesPending is returned by a forced cut against an empty
	// current segment.
	CodeNoFramesPending

	// CodeNonMonotonicTimestamp is returned when an ingested frame's
	// timestamp precedes the last one seen.
	CodeNonMonotonicTimestamp

	// CodeMaxDurationExceeded is reserved for policies stricter than the
	// default forced cut at max_duration.
	CodeMaxDurationExceeded

	// CodeInvalidConfiguration covers wrong codec category, missing
	// audio configuration, and bad preset arguments.
	CodeInvalidConfiguration

	// CodeInvalidKeySize is returned when a crypto key is not exactly
	// 16 bytes.
	CodeInvalidKeySize

	// CodeInvalidIVSize is returned when an IV is not exactly 16 bytes.
	CodeInvalidIVSize

	// CodeCryptoFailed covers underlying cipher failures and padding
	// errors during decryption.
	CodeCryptoFailed

	// CodeUnsupportedMethod is returned for encryption methods that are
	// declared but not implemented (SAMPLE-AES-CTR).
	CodeUnsupportedMethod

	// CodeSegmentNotFound is returned by directory-mode encryption when
	// a named segment file cannot be read, or its encrypted form cannot
	// be written back.
	CodeSegmentNotFound

	// CodeKeyNotFound is returned by directory-mode encryption when
	// key.bin cannot be written.
	CodeKeyNotFound

	// CodeMalformedMedia is returned for media bytes that cannot be
	// scanned, framed or muxed: bad ADTS or NALU framing, SAMPLE-AES
	// input that is not TS-packet or block aligned, a box too large for
	// its 32-bit size, a patch outside the buffer, and TS output that
	// does not fit the 188-byte packet layout.
	CodeMalformedMedia
)

// String renders the human-readable name of a code, used in Error().
func (c ErrorCode) String() string {
	switch c {
	case CodeNotActive:
		return "NotActive"
	case CodeNoFramesPending:
		return "NoFramesPending"
	case CodeNonMonotonicTimestamp:
		return "NonMonotonicTimestamp"
	case CodeMaxDurationExceeded:
		return "MaxDurationExceeded"
	case CodeInvalidConfiguration:
		return "InvalidConfiguration"
	case CodeInvalidKeySize:
		return "InvalidKeySize"
	case CodeInvalidIVSize:
		return "InvalidIVSize"
	case CodeCryptoFailed:
		return "CryptoFailed"
	case CodeUnsupportedMethod:
		return "UnsupportedMethod"
	case CodeSegmentNotFound:
		return "SegmentNotFound"
	case CodeKeyNotFound:
		return "KeyNotFound"
	case CodeMalformedMedia:
		return "MalformedMedia"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every public operation in
// this module.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}

// GetErrorCode returns the code carried by err, or ErrCodeUnknown if err
// is nil or not an *Error.
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ErrCodeUnknown
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ErrCodeUnknown
}

// Convenience constructors for the taxonomy entries that carry a fixed
// message; MaxDurationExceeded and MalformedMedia have none and are
// built with New/Newf/Wrap.

func NotActive() *Error {
	return New(CodeNotActive, "operation not permitted after finish()")
}

func NoFramesPending() *Error {
	return New(CodeNoFramesPending, "no frames pending in current segment")
}

func NonMonotonicTimestamp(detail string) *Error {
	return New(CodeNonMonotonicTimestamp, detail)
}

func InvalidConfiguration(detail string) *Error {
	return New(CodeInvalidConfiguration, detail)
}

func InvalidKeySize(n int) *Error {
	return Newf(CodeInvalidKeySize, "invalid key size: %d bytes, want 16", n)
}

func InvalidIVSize(n int) *Error {
	return Newf(CodeInvalidIVSize, "invalid iv size: %d bytes, want 16", n)
}

func CryptoFailed(detail string) *Error {
	return New(CodeCryptoFailed, detail)
}

func UnsupportedMethod(detail string) *Error {
	return New(CodeUnsupportedMethod, detail)
}

func SegmentNotFound(path string) *Error {
	return Newf(CodeSegmentNotFound, "segment not found: %s", path)
}

func KeyNotFound(path string) *Error {
	return Newf(CodeKeyNotFound, "key not found: %s", path)
}
