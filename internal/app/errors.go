package service

import "errors"

var (
	// ErrSessionState indicates a lifecycle call in the wrong state.
	ErrSessionState = errors.New("invalid session state")
)
