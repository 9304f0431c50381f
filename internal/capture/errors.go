package capture

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionActive is returned by Start when a capture session is
// already running.
var ErrSessionActive = errors.New("a capture session is already active")

// UnexpectedExit reports a capture process that terminated on its own
// with a failure status.
type UnexpectedExit struct {
	ExitCode int
	Tail     []string
}

func (e *UnexpectedExit) Error() string {
	msg := fmt.Sprintf("capture process exited unexpectedly with code %d", e.ExitCode)
	if len(e.Tail) > 0 {
		msg += ": " + strings.Join(e.Tail, " | ")
	}
	return msg
}
