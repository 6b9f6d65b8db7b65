// Package router gates every editor-triggered protocol call before it
// reaches a session. Lifecycle calls are admitted by document ownership;
// query calls are admitted only for the foreground session, so background
// sessions never answer foreground IDE queries.
package router

import (
	"context"

	"github.com/langtools/analyzerd/src/analyzerd/controller/session"
	"github.com/langtools/analyzerd/src/analyzerd/gateway/analyzer"
	"github.com/langtools/analyzerd/src/analyzerd/repository/registry"
	tally "github.com/uber-go/tally"
	"go.lsp.dev/protocol"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Router is the middleware in front of every session's protocol surface.
type Router interface {
	// DidOpen admits a document-open event iff the target session owns the
	// document. The document is tracked before the transport call fires.
	DidOpen(ctx context.Context, target *session.Session, doc protocol.TextDocumentItem) error
	// DidClose admits a document-close event iff the target session owns the
	// document.
	DidClose(ctx context.Context, target *session.Session, doc protocol.TextDocumentIdentifier) error

	// Query-class calls, forwarded iff target is the active session;
	// otherwise a neutral empty result is returned with no error.
	NavigationList(ctx context.Context, target *session.Session, params *analyzer.NavigationListParams) (*analyzer.NavigationList, error)
	GoToDeclaration(ctx context.Context, target *session.Session, params *analyzer.DeclarationParams) ([]protocol.Location, error)
	SwitchHeaderSource(ctx context.Context, target *session.Session, params *analyzer.SwitchHeaderSourceParams) (string, error)

	// Editor-state notifications, forwarded iff target is the active session.
	SelectionChanged(ctx context.Context, target *session.Session, params *analyzer.SelectionChangedParams)
	ActiveDocumentChanged(ctx context.Context, target *session.Session, params *analyzer.ActiveDocumentParams)
}

// Params are inbound parameters to construct a new router.
type Params struct {
	fx.In

	Registry registry.Registry
	Logger   *zap.SugaredLogger
	Stats    tally.Scope
}

type router struct {
	registry   registry.Registry
	logger     *zap.SugaredLogger
	suppressed tally.Counter
}

// New constructs a Router over the given registry.
func New(p Params) Router {
	return &router{
		registry:   p.Registry,
		logger:     p.Logger,
		suppressed: p.Stats.Counter("suppressed_calls"),
	}
}

func (r *router) DidOpen(ctx context.Context, target *session.Session, doc protocol.TextDocumentItem) error {
	id := protocol.TextDocumentIdentifier{URI: doc.URI}
	if !r.registry.CheckOwnership(target, id) {
		// Not an error: the owning session will receive its own event.
		r.suppressed.Inc(1)
		r.logger.Debugw("dropping didOpen for non-owned document", "session", target.Name(), "uri", doc.URI)
		return nil
	}
	return target.Open(ctx, doc)
}

func (r *router) DidClose(ctx context.Context, target *session.Session, doc protocol.TextDocumentIdentifier) error {
	if !r.registry.CheckOwnership(target, doc) {
		r.suppressed.Inc(1)
		r.logger.Debugw("dropping didClose for non-owned document", "session", target.Name(), "uri", doc.URI)
		return nil
	}
	return target.Close(ctx, doc)
}

func (r *router) NavigationList(ctx context.Context, target *session.Session, params *analyzer.NavigationListParams) (*analyzer.NavigationList, error) {
	if !r.isActive(target) {
		return &analyzer.NavigationList{}, nil
	}
	return target.RequestNavigationList(ctx, params)
}

func (r *router) GoToDeclaration(ctx context.Context, target *session.Session, params *analyzer.DeclarationParams) ([]protocol.Location, error) {
	if !r.isActive(target) {
		return nil, nil
	}
	return target.RequestGoToDeclaration(ctx, params)
}

func (r *router) SwitchHeaderSource(ctx context.Context, target *session.Session, params *analyzer.SwitchHeaderSourceParams) (string, error) {
	if !r.isActive(target) {
		return "", nil
	}
	return target.RequestSwitchHeaderSource(ctx, params)
}

func (r *router) SelectionChanged(ctx context.Context, target *session.Session, params *analyzer.SelectionChangedParams) {
	if !r.isActive(target) {
		return
	}
	target.NotifySelectionChanged(ctx, params)
}

func (r *router) ActiveDocumentChanged(ctx context.Context, target *session.Session, params *analyzer.ActiveDocumentParams) {
	if !r.isActive(target) {
		return
	}
	target.NotifyActiveDocumentChanged(ctx, params)
}

func (r *router) isActive(target *session.Session) bool {
	if r.registry.ActiveSession() == target {
		return true
	}
	r.suppressed.Inc(1)
	return false
}
