package mapper

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/langtools/analyzerd/src/analyzerd/entity"
	"github.com/langtools/analyzerd/src/analyzerd/internal/errors"
	"github.com/langtools/analyzerd/src/analyzerd/model"
	"go.lsp.dev/uri"
)

// SessionToModel maps a Session entity to its model equivalent.
func SessionToModel(s *entity.Session) *model.Session {
	return &model.Session{
		UUID:          s.UUID,
		Name:          s.Name,
		WorkspaceRoot: s.Folder.Path,
		State:         s.State.String(),
		Supported:     s.Supported,
	}
}

// ModelToSession maps a model Session to its entity equivalent.
func ModelToSession(s *model.Session) (*entity.Session, error) {
	state, err := stateFromString(s.State)
	if err != nil {
		return nil, err
	}
	return &entity.Session{
		UUID:      s.UUID,
		Name:      s.Name,
		Folder:    entity.WorkspaceFolder{Name: s.Name, Path: s.WorkspaceRoot},
		State:     state,
		Supported: s.Supported,
	}, nil
}

// ContextToSessionUUID extracts the session UUID from a context.
func ContextToSessionUUID(c context.Context) (uuid.UUID, error) {
	s, ok := c.Value(entity.SessionContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.NoSessionOnContextError
	}
	return s, nil
}

// URIToPath converts a document URI to a filesystem path for ownership checks.
func URIToPath(u uri.URI) string {
	return u.Filename()
}

func stateFromString(s string) (entity.SessionState, error) {
	for _, state := range []entity.SessionState{
		entity.StateNotStarted,
		entity.StateInitializing,
		entity.StateReady,
		entity.StateFailed,
		entity.StateDisposed,
	} {
		if state.String() == s {
			return state, nil
		}
	}
	return entity.StateNotStarted, errors.New("unknown session state " + s)
}
