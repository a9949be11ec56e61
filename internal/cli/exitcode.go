package cli

import "fmt"

// exitError carries the process exit code a subcommand wants on failure:
// 1 for a user error (bad input, missing flag, not found), 2 for an
// operational error (backend unavailable, I/O failure). A plain error
// returned from a RunE defaults to 1, matching cobra's own convention.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(format string, args ...interface{}) error {
	return &exitError{code: 1, err: fmt.Errorf(format, args...)}
}

func operationalError(format string, args ...interface{}) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}

// exitCode extracts the intended process exit code from an error returned
// by a subcommand's RunE, defaulting to 1 for an unclassified error and 0
// for nil.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	return 1
}
