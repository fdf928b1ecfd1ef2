package errors

import (
	stderr "errors"
	"fmt"
)

// SpawnError reports that a language server command could not be started
// inside its container. It carries the underlying runtime diagnostic.
type SpawnError struct {
	ContainerID string
	Command     []string
	Err         error
}

// Error is an implementation of the error interface.
func (s *SpawnError) Error() string {
	return fmt.Sprintf("spawning %v in container %q: %v", s.Command, s.ContainerID, s.Err)
}

// Unwrap exposes the underlying cause.
func (s *SpawnError) Unwrap() error {
	return s.Err
}

// IsSpawnError reports whether SpawnError is part of the error chain.
func IsSpawnError(e error) bool {
	var se *SpawnError
	return stderr.As(e, &se)
}
