package replay

import "errors"

var (
	// ErrCorruptRecord indicates a log line that could not be decoded.
	ErrCorruptRecord = errors.New("corrupt session log record")
	// ErrMissingHeader indicates a log that does not open with a session record.
	ErrMissingHeader = errors.New("session log missing header")
)
