package process

import (
	"fmt"
	"strings"
)

// Spec describes a process to spawn: an argument vector whose first
// element is the executable, plus an optional working directory.
// Immutable once built.
type Spec struct {
	Args []string
	Dir  string
}

// NewSpec creates a Spec from an executable and its arguments.
func NewSpec(args ...string) Spec {
	return Spec{Args: args}
}

// Tool returns the executable name, or "" for an empty spec.
func (s Spec) Tool() string {
	if len(s.Args) == 0 {
		return ""
	}
	return s.Args[0]
}

// String renders the spec for logging.
func (s Spec) String() string {
	return strings.Join(s.Args, " ")
}

// Validate checks that the spec names an executable.
func (s Spec) Validate() error {
	if len(s.Args) == 0 {
		return fmt.Errorf("empty process spec")
	}
	return nil
}
