package errors

import stderr "errors"

// New returns an error that formats as the given text.
// Each call to New returns a distinct error value even if the text is identical.
func New(msg string) error {
	return stderr.New(msg)
}

var (
	// ErrUnsupportedSession reports that the session's analyzer could not be
	// started on this platform; all gated calls reject with this error.
	ErrUnsupportedSession = New("analyzer is not supported in this session")
	// ErrSessionDisposed reports that the session was shut down before the
	// call could be transmitted.
	ErrSessionDisposed = New("session has been disposed")
	// NoSessionOnContextError reports that the request context is missing a session UUID.
	NoSessionOnContextError = New("session UUID is required on context")
)

// IsUnsupported reports whether the error indicates an unsupported session.
func IsUnsupported(e error) bool {
	return stderr.Is(e, ErrUnsupportedSession)
}
