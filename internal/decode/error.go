package decode

import "fmt"

// Error reports a value tree whose shape does not match the expected layout.
type Error struct {
	Path   string // Path locates the offending node, e.g. "key[0].0"
	Reason string // Reason describes the mismatch
	Err    error  // Err is the underlying cause, if any
}

// Error implements error.
func (e *Error) Error() string {
	msg := "decode " + e.Path + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// fail builds an Error with a formatted reason.
func fail(path, format string, args ...any) *Error {
	return &Error{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// wrap builds an Error around a cause.
func wrap(path, reason string, err error) *Error {
	return &Error{Path: path, Reason: reason, Err: err}
}

// join appends a segment to a path.
func join(path, segment string) string {
	if path == "" {
		return segment
	}

	return path + "." + segment
}
