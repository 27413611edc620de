package jxl

import "github.com/pkg/errors"

// Sentinel error kinds, tested with errors.Is/errors.Cause rather than
// string matching. Each wraps the underlying cause from the internal
// package that produced it, preserving pkg/errors' stack trace.
var (
	// ErrInvalidInput is returned when the caller-supplied image or
	// Options fail validation before any encoding work starts.
	ErrInvalidInput = errors.New("jxl: invalid input")
	// ErrEncodingFailed is returned when a validated input fails partway
	// through the encode pipeline (color transform, coding path,
	// framing).
	ErrEncodingFailed = errors.New("jxl: encoding failed")
	// ErrNotSupported is returned for recognized-but-unimplemented
	// combinations of Options (see Non-goals).
	ErrNotSupported = errors.New("jxl: not supported")
	// ErrDecodeFailed is returned when a codestream or container fails to
	// parse or round-trip.
	ErrDecodeFailed = errors.New("jxl: decode failed")
)
