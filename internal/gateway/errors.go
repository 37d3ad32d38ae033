package gateway

import "errors"

var (
	ErrNotFound = errors.New("connection not found")
	ErrNotReady = errors.New("connection not ready")
	ErrTimeout  = errors.New("timed out waiting for connection")

	// ErrTransientLaunch marks client start failures worth retrying inline,
	// such as resource exhaustion or a closed browser target.
	ErrTransientLaunch = errors.New("transient launch failure")
)
