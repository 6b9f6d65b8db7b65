package errors

import (
	stderr "errors"
	"fmt"

	"github.com/gofrs/uuid"
	"go.lsp.dev/protocol"
)

// UUIDNotFoundError is a service domain error for a missing session.
type UUIDNotFoundError struct {
	UUID uuid.UUID
}

// Error is an implementation of the error interface.
func (n *UUIDNotFoundError) Error() string {
	return fmt.Sprintf("session %q not found", n.UUID)
}

// NotFoundUUID returns a UUID and true if UUIDNotFoundError is part of the
// error chain.
func NotFoundUUID(e error) (_ uuid.UUID, ok bool) {
	var nf *UUIDNotFoundError
	if !stderr.As(e, &nf) {
		return uuid.Nil, false
	}
	return nf.UUID, true
}

// DocumentNotTrackedError indicates that a document is not in the session's tracked set.
type DocumentNotTrackedError struct {
	Document protocol.TextDocumentIdentifier
}

// Error is an implementation of the error interface.
func (n *DocumentNotTrackedError) Error() string {
	return fmt.Sprintf("document %q is not tracked by this session", n.Document.URI)
}
