package source

import (
	"errors"
	"fmt"
)

// ErrNoSources is returned when a run is started with zero inputs. This is
// the only fatal condition in the pipeline.
var ErrNoSources = errors.New("no log sources supplied")

// UserError wraps errors with operator-facing messages.
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}
