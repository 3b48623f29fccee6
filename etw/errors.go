package etw

import (
	"errors"
)

// Per-record errors. These classify a single event record and never abort
// trace processing; they reach the application through the DecodedEvent
// passed to its callback.
var (
	// ErrNotFound is returned when the metadata service has no published
	// schema for a requested provider or event id.
	ErrNotFound = errors.New("no published schema")

	// ErrSchemaVersionTooOld is returned when a received record carries a
	// version lower than the one a shape was declared against. Such a
	// record predates the field layout the program was generated from and
	// cannot be decoded safely.
	ErrSchemaVersionTooOld = errors.New("record version older than declared shape")

	// ErrLayoutMismatch is returned when a fixed-size field does not fit
	// its byte range exactly, or the range falls outside the record buffer.
	ErrLayoutMismatch = errors.New("field layout mismatch")

	// ErrTruncatedRecord is returned when a variable-length field would
	// consume bytes past the end of the record buffer.
	ErrTruncatedRecord = errors.New("truncated event record")
)

// Session-level errors. These are fatal to the operation that raised them
// and are returned to the caller.
var (
	// ErrMetadataUnavailable wraps a failure of the operating system's
	// tracing metadata service.
	ErrMetadataUnavailable = errors.New("tracing metadata unavailable")

	// ErrSessionNameInUse is returned by StartSession when a kernel session
	// with the same name already exists and ClosePrevious was not set.
	ErrSessionNameInUse = errors.New("session name already in use")

	// ErrSessionNotFound is returned when closing a named session that does
	// not exist.
	ErrSessionNotFound = errors.New("session does not exist")

	// ErrPreviousSessionCloseFailed is returned when ClosePrevious was set
	// but the stale same-named session could not be stopped.
	ErrPreviousSessionCloseFailed = errors.New("failed to close previous session")

	// ErrSessionStartFailed wraps any other failure of the underlying
	// session start call.
	ErrSessionStartFailed = errors.New("session start failed")

	// ErrSessionClosed is returned when an operation requires an active
	// session.
	ErrSessionClosed = errors.New("session is closed")
)
