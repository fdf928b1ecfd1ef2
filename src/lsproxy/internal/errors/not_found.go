package errors

import (
	stderr "errors"
	"fmt"
)

// KeyNotFoundError is a service domain error for a missing session key.
type KeyNotFoundError struct {
	ContainerID string
	ServerName  string
}

// Error is an implementation of the error interface.
func (n *KeyNotFoundError) Error() string {
	return fmt.Sprintf("session %q/%q not found", n.ContainerID, n.ServerName)
}

// NotFoundKey returns the missing key fields and true if KeyNotFoundError is
// part of the error chain.
func NotFoundKey(e error) (containerID string, serverName string, ok bool) {
	var nf *KeyNotFoundError
	if !stderr.As(e, &nf) {
		return "", "", false
	}
	return nf.ContainerID, nf.ServerName, true
}

// NoSessionFoundError indicates that a session key cannot be found within the context.
type NoSessionFoundError struct{}

// Error is an implementation of the error interface.
func (n *NoSessionFoundError) Error() string {
	return "no session found in context"
}
