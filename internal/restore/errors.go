package restore

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionActive is returned by Start when a session is already
// holding the pipeline.
var ErrSessionActive = errors.New("a restoration session is already active")

// UnexpectedExit reports a pipeline stage that terminated on its own
// with a failure status. The stderr tail travels with the error so the
// cause survives into logs and API responses.
type UnexpectedExit struct {
	Stage    string
	ExitCode int
	Tail     []string
}

func (e *UnexpectedExit) Error() string {
	msg := fmt.Sprintf("%s exited unexpectedly with code %d", e.Stage, e.ExitCode)
	if len(e.Tail) > 0 {
		msg += ": " + strings.Join(e.Tail, " | ")
	}
	return msg
}
