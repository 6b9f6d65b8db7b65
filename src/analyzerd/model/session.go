package model

import (
	"github.com/gofrs/uuid"
)

// Session is the repository layer model for an individual analyzer session.
type Session struct {
	UUID          uuid.UUID
	Name          string
	WorkspaceRoot string
	State         string
	Supported     bool
}
