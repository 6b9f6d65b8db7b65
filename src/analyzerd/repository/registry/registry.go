// Package registry holds every active session for the current window,
// tracks which one is foreground, and owns the crash-recovery flow.
package registry

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/langtools/analyzerd/src/analyzerd/controller/session"
	"github.com/langtools/analyzerd/src/analyzerd/entity"
	"github.com/langtools/analyzerd/src/analyzerd/gateway/notice"
	"github.com/langtools/analyzerd/src/analyzerd/internal/clock"
	"github.com/langtools/analyzerd/src/analyzerd/internal/crashpolicy"
	"github.com/langtools/analyzerd/src/analyzerd/internal/errors"
	"github.com/langtools/analyzerd/src/analyzerd/mapper"
	"github.com/langtools/analyzerd/src/analyzerd/model"
	tally "github.com/uber-go/tally"
	"go.lsp.dev/protocol"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Factory constructs a new session for a workspace folder. The registry uses
// it to build replacements after a crash.
type Factory func(ctx context.Context, folder entity.WorkspaceFolder) (*session.Session, error)

// Registry is the window-scoped collection of sessions. The first session
// registered becomes the ownerless fallback and the initial active session.
type Registry interface {
	// Register adds a session and installs its crash handler.
	Register(ctx context.Context, s *session.Session) error
	// Sessions returns all registered sessions in registration order.
	Sessions() []*session.Session
	// SessionByUUID returns the registered session with the given identifier.
	SessionByUUID(id uuid.UUID) (*session.Session, error)
	// SessionCount returns the number of registered sessions.
	SessionCount() int
	// Describe returns repository-layer snapshots of every session.
	Describe() []*model.Session
	// OwnerOf returns the session owning the document: the session whose
	// folder is the longest matching ancestor of the document's path, or the
	// fallback session when no folder matches. Nil if nothing is registered.
	OwnerOf(doc protocol.TextDocumentIdentifier) *session.Session
	// CheckOwnership reports whether s is the owner of the document.
	CheckOwnership(s *session.Session, doc protocol.TextDocumentIdentifier) bool
	// ActiveSession returns the foreground session.
	ActiveSession() *session.Session
	// SetActiveSession deactivates the previous foreground session's state
	// model and activates the new one as a single transition.
	SetActiveSession(s *session.Session)
	// Replace disposes the session's transport-facing resources and
	// re-registers a fresh session for the same folder in the same slot,
	// migrating the crash record when requested.
	Replace(ctx context.Context, old *session.Session, transferCrashRecord bool) (*session.Session, error)
	// DisposeAll disposes every session and empties the registry.
	DisposeAll(ctx context.Context) error
}

// Params are inbound parameters to construct a new registry.
type Params struct {
	fx.In

	Logger  *zap.SugaredLogger
	Stats   tally.Scope
	Clock   clock.Clock
	Notices notice.Gateway
	Policy  crashpolicy.Policy
	Factory Factory
}

type registry struct {
	mu       sync.Mutex
	sessions []*session.Session
	active   *session.Session

	logger  *zap.SugaredLogger
	gauge   tally.Gauge
	clock   clock.Clock
	notices notice.Gateway
	policy  crashpolicy.Policy
	factory Factory
}

// New constructs an empty registry.
func New(p Params) Registry {
	return &registry{
		logger:  p.Logger,
		gauge:   p.Stats.Gauge("active_sessions"),
		clock:   p.Clock,
		notices: p.Notices,
		policy:  p.Policy,
		factory: p.Factory,
	}
}

func (r *registry) Register(ctx context.Context, s *session.Session) error {
	if s == nil {
		return errors.New("can't register nil session")
	}

	r.mu.Lock()
	r.sessions = append(r.sessions, s)
	r.gauge.Update(float64(len(r.sessions)))
	if len(r.sessions) == 1 {
		r.active = s
		s.Activate()
	}
	r.mu.Unlock()

	s.SetCrashHandler(r.handleCrash)
	r.logger.Infow("session registered", "session", s.Name(), "folder", s.Folder().Path)
	return nil
}

func (r *registry) Sessions() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session.Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

func (r *registry) SessionByUUID(id uuid.UUID) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UUID() == id {
			return s, nil
		}
	}
	return nil, &errors.UUIDNotFoundError{UUID: id}
}

func (r *registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *registry) Describe() []*model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, mapper.SessionToModel(s.Entity()))
	}
	return out
}

func (r *registry) OwnerOf(doc protocol.TextDocumentIdentifier) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownerOfLocked(doc)
}

// ownerOfLocked performs a longest-matching-prefix search over registered
// folders. Folders are disjoint by construction, so ties cannot occur.
func (r *registry) ownerOfLocked(doc protocol.TextDocumentIdentifier) *session.Session {
	if len(r.sessions) == 0 {
		return nil
	}
	path := mapper.URIToPath(doc.URI)

	var best *session.Session
	bestLen := -1
	for _, s := range r.sessions {
		folder := s.Folder()
		if folder.Contains(path) && len(folder.Path) > bestLen {
			best = s
			bestLen = len(folder.Path)
		}
	}
	if best == nil {
		return r.sessions[0]
	}
	return best
}

func (r *registry) CheckOwnership(s *session.Session, doc protocol.TextDocumentIdentifier) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownerOfLocked(doc) == s
}

func (r *registry) ActiveSession() *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// SetActiveSession performs the focus transition as a single step: the
// pointer swap and both model toggles happen under the registry lock, so no
// other registry operation can interleave between deactivation and
// activation. The toggles only flip publication flags and never run
// subscriber callbacks, so holding the lock across them is safe.
func (r *registry) SetActiveSession(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.active
	if previous == s {
		return
	}
	r.active = s
	if previous != nil {
		previous.Deactivate()
	}
	if s != nil {
		s.Activate()
	}
}

func (r *registry) Replace(ctx context.Context, old *session.Session, transferCrashRecord bool) (*session.Session, error) {
	var rec *entity.CrashRecord
	if transferCrashRecord {
		rec = old.TakeCrashRecord()
	}
	return r.replace(ctx, old, rec)
}

// replace builds a fresh session for the old one's folder, migrates the
// crash record and tracked documents, swaps it into the same registry slot,
// and disposes the old session. Replayed didOpen calls queue behind the new
// session's readiness gate, so the analyzer sees them only once it is ready.
func (r *registry) replace(ctx context.Context, old *session.Session, rec *entity.CrashRecord) (*session.Session, error) {
	fresh, err := r.factory(ctx, old.Folder())
	if err != nil {
		return nil, err
	}
	fresh.AdoptCrashRecord(rec)
	for _, doc := range old.TrackedDocuments() {
		if openErr := fresh.Open(ctx, doc); openErr != nil {
			r.logger.Warnw("re-opening tracked document", "uri", doc.URI, "error", openErr)
		}
	}

	r.mu.Lock()
	slot := -1
	for i, s := range r.sessions {
		if s == old {
			slot = i
			break
		}
	}
	if slot == -1 {
		r.mu.Unlock()
		disposeErr := fresh.Dispose(ctx)
		return nil, multierr.Append(errors.New("session is not registered"), disposeErr)
	}
	r.sessions[slot] = fresh
	if r.active == old {
		r.active = fresh
		old.Deactivate()
		fresh.Activate()
	}
	r.mu.Unlock()

	fresh.SetCrashHandler(r.handleCrash)
	if err := old.Dispose(ctx); err != nil {
		r.logger.Warnw("disposing replaced session", "session", old.Name(), "error", err)
	}
	r.logger.Infow("session replaced", "session", fresh.Name(), "folder", fresh.Folder().Path)
	return fresh, nil
}

// handleCrash runs the crash policy for a crashed session. Evaluation is
// synchronous with the crash event; a disposed or replaced session cannot
// emit a further crash, so evaluations for one folder never interleave.
func (r *registry) handleCrash(s *session.Session) {
	ctx := context.Background()

	r.mu.Lock()
	registered := false
	for _, cur := range r.sessions {
		if cur == s {
			registered = true
			break
		}
	}
	multiFolder := len(r.sessions) > 1
	r.mu.Unlock()
	if !registered {
		return
	}

	rec := s.TakeCrashRecord()
	switch r.policy.Decide(rec, r.clock.Now()) {
	case crashpolicy.Stop:
		r.logger.Errorw("analyzer crash loop, stopping session", "session", s.Name(), "crashes", rec.Len())
		r.remove(ctx, s)
		r.notices.CrashLoop(s.Folder().Name, multiFolder)

	case crashpolicy.Replace:
		if _, err := r.replace(ctx, s, rec); err != nil {
			r.logger.Errorw("replacing crashed session", "session", s.Name(), "error", err)
			r.remove(ctx, s)
		}
	}
}

// remove tears a session down and drops it from the registry without
// replacement. If it was the foreground session, focus falls back to the
// first remaining session.
func (r *registry) remove(ctx context.Context, s *session.Session) {
	r.mu.Lock()
	for i, cur := range r.sessions {
		if cur == s {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			break
		}
	}
	if r.active == s {
		r.active = nil
		s.Deactivate()
		if len(r.sessions) > 0 {
			r.active = r.sessions[0]
			r.active.Activate()
		}
	}
	r.gauge.Update(float64(len(r.sessions)))
	r.mu.Unlock()
	if err := s.Dispose(ctx); err != nil {
		r.logger.Warnw("disposing session", "session", s.Name(), "error", err)
	}
}

func (r *registry) DisposeAll(ctx context.Context) error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = nil
	r.active = nil
	r.gauge.Update(0)
	r.mu.Unlock()

	var err error
	for _, s := range sessions {
		err = multierr.Append(err, s.Dispose(ctx))
	}
	return err
}
