package errors

import stderr "errors"

// New returns an error that formats as the given text.
// Each call to New returns a distinct error value even if the text is identical.
func New(msg string) error {
	return stderr.New(msg)
}

var (
	// SessionStoppedError reports that an operation was attempted on a stopped session.
	SessionStoppedError = New("session is stopped")
	// RegistryClosedError reports that the session registry has been shut down.
	RegistryClosedError = New("session registry is closed")
)

// IsRetryable reports whether the caller may retry session creation after the error.
func IsRetryable(e error) bool {
	return !stderr.Is(e, RegistryClosedError)
}
