// Package session implements the lifecycle of one analyzer session: a single
// transport to the external analysis process, the readiness gate in front of
// it, the observable state model, and the folder's crash record.
package session

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/langtools/analyzerd/src/analyzerd/entity"
	"github.com/langtools/analyzerd/src/analyzerd/gateway/analyzer"
	"github.com/langtools/analyzerd/src/analyzerd/gateway/notice"
	"github.com/langtools/analyzerd/src/analyzerd/internal/errors"
	"github.com/langtools/analyzerd/src/analyzerd/internal/observable"
	"github.com/langtools/analyzerd/src/analyzerd/internal/readygate"
	"github.com/langtools/analyzerd/src/analyzerd/internal/settings"
	tally "github.com/uber-go/tally"
	"go.lsp.dev/protocol"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const _compileCommandsFile = "compile_commands.json"

// Params are inbound parameters to construct a new Session.
type Params struct {
	Name           string
	Folder         entity.WorkspaceFolder
	AnalyzerConfig analyzer.Config
	SettingsGetter settings.Getter
	Notices        notice.Gateway
	Logger         *zap.SugaredLogger
	Stats          tally.Scope

	// Transport overrides process spawning, for socket mode and tests.
	Transport analyzer.Transport
	// WatchPaths overrides the default set of watched configuration files.
	WatchPaths []string
}

// Session owns one analyzer connection and its observable state. The
// transport is created exactly once at construction; after a crash the whole
// Session is replaced by the registry rather than re-wiring a new transport
// into a live one.
type Session struct {
	id     uuid.UUID
	name   string
	folder entity.WorkspaceFolder

	mu          sync.Mutex
	state       entity.SessionState
	supported   bool
	paused      bool
	disposed    bool
	crashed     bool
	crashRecord *entity.CrashRecord
	docs        map[protocol.DocumentURI]protocol.TextDocumentItem
	onCrash     func(*Session)

	transport analyzer.Transport
	gate      *readygate.Gate
	model     *observable.StateModel
	snapshot  *settings.Snapshot
	getter    settings.Getter
	watcher   *settings.Watcher
	notices   notice.Gateway
	logger    *zap.SugaredLogger
	stats     tally.Scope

	ctx         context.Context
	cancel      context.CancelFunc
	monitorDone chan struct{}
}

// New constructs a Session and begins initializing it. A Session is always
// returned: if the analyzer cannot be started on this platform, the session
// is marked unsupported, its gate fails, and every gated call rejects.
func New(ctx context.Context, p Params) *Session {
	id := uuid.Must(uuid.NewV4())
	logger := p.Logger.With("session", p.Name)

	s := &Session{
		id:          id,
		name:        p.Name,
		folder:      p.Folder,
		state:       entity.StateNotStarted,
		supported:   true,
		crashRecord: entity.NewCrashRecord(),
		docs:        make(map[protocol.DocumentURI]protocol.TextDocumentItem),
		gate:        readygate.New(p.Stats.SubScope("gate")),
		model:       observable.NewStateModel(logger),
		snapshot:    settings.NewSnapshot(p.Folder.Path),
		getter:      p.SettingsGetter,
		notices:     p.Notices,
		logger:      logger,
		stats:       p.Stats,
		monitorDone: make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.transport = p.Transport
	if s.transport == nil {
		t, err := analyzer.Spawn(s.ctx, p.AnalyzerConfig, s.handleInbound, logger)
		if err != nil {
			logger.Warnw("analyzer unavailable", "error", err)
			s.supported = false
			s.state = entity.StateFailed
			s.gate.Fail(errors.ErrUnsupportedSession)
			close(s.monitorDone)
			if s.notices != nil {
				s.notices.Unsupported(s.name)
			}
			return s
		}
		s.transport = t
	}

	if !p.Folder.IsZero() {
		paths := p.WatchPaths
		if len(paths) == 0 {
			paths = []string{
				filepath.Join(p.Folder.Path, _compileCommandsFile),
				filepath.Join(p.Folder.Path, ".analyzerd.yaml"),
			}
		}
		w, err := settings.NewWatcher(paths, s.onSettingsFileChanged, logger)
		if err != nil {
			logger.Warnw("settings watcher unavailable", "error", err)
		} else {
			s.watcher = w
		}
	}

	s.state = entity.StateInitializing
	go s.initialize()
	go s.monitor()
	return s
}

// UUID returns the session's identifier.
func (s *Session) UUID() uuid.UUID { return s.id }

// Name returns the session's human-readable name.
func (s *Session) Name() string { return s.name }

// Folder returns the workspace folder this session is scoped to.
func (s *Session) Folder() entity.WorkspaceFolder { return s.folder }

// Supported reports whether the analyzer could be started on this platform.
func (s *Session) Supported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supported
}

// State returns the session's lifecycle state.
func (s *Session) State() entity.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Entity returns a snapshot of the session as a domain entity.
func (s *Session) Entity() *entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &entity.Session{
		UUID:      s.id,
		Name:      s.name,
		Folder:    s.folder,
		State:     s.state,
		Supported: s.supported,
	}
}

// Model returns the session's observable state model.
func (s *Session) Model() *observable.StateModel { return s.model }

// Activate enables publication of the session's state model.
func (s *Session) Activate() { s.model.Activate() }

// Deactivate suppresses publication of the session's state model.
func (s *Session) Deactivate() { s.model.Deactivate() }

// SetCrashHandler installs the registry's crash callback. The callback runs
// synchronously with the crash event. A crash is sticky: if the transport
// died before the handler was installed, the handler is invoked immediately,
// so a crash observed between construction and registration is never lost.
func (s *Session) SetCrashHandler(fn func(*Session)) {
	s.mu.Lock()
	s.onCrash = fn
	pending := s.crashed && !s.disposed && fn != nil
	if pending {
		s.crashed = false
	}
	s.mu.Unlock()

	if pending {
		fn(s)
	}
}

// TakeCrashRecord transfers ownership of the folder's crash record to the
// caller. The session never reads the record again after migration.
func (s *Session) TakeCrashRecord() *entity.CrashRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.crashRecord
	s.crashRecord = entity.NewCrashRecord()
	return rec
}

// AdoptCrashRecord installs a crash record migrated from a replaced session.
func (s *Session) AdoptCrashRecord(rec *entity.CrashRecord) {
	if rec == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crashRecord = rec
}

// TrackedDocuments returns the documents currently tracked by this session.
func (s *Session) TrackedDocuments() []protocol.TextDocumentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.TextDocumentItem, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	return out
}

// Tracks reports whether the given document is in this session's tracked set.
func (s *Session) Tracks(doc protocol.TextDocumentIdentifier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[doc.URI]
	return ok
}

// Open adds the document to the tracked set and announces it to the
// analyzer. The document is tracked before the transport call fires, so the
// analyzer never sees a request for an untracked document. Open is
// idempotent.
func (s *Session) Open(ctx context.Context, doc protocol.TextDocumentItem) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return errors.ErrSessionDisposed
	}
	if _, ok := s.docs[doc.URI]; ok {
		s.mu.Unlock()
		return nil
	}
	s.docs[doc.URI] = doc
	s.mu.Unlock()

	s.gate.Notify(func() error {
		return s.transport.Notify(s.ctx, analyzer.MethodDidOpen, &analyzer.DidOpenParams{TextDocument: doc})
	})
	return nil
}

// Close removes the document from the tracked set. Closing an untracked
// document is a programming error; it is asserted in development and
// otherwise ignored.
func (s *Session) Close(ctx context.Context, doc protocol.TextDocumentIdentifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return errors.ErrSessionDisposed
	}
	if _, ok := s.docs[doc.URI]; !ok {
		s.logger.DPanicw("closing untracked document", "uri", doc.URI)
		return &errors.DocumentNotTrackedError{Document: doc}
	}
	delete(s.docs, doc.URI)
	return nil
}

// RequestNavigationList requests the navigation items for a position.
func (s *Session) RequestNavigationList(ctx context.Context, params *analyzer.NavigationListParams) (*analyzer.NavigationList, error) {
	var result analyzer.NavigationList
	err := <-s.gate.Request(func() error {
		return s.transport.Request(ctx, analyzer.MethodNavigationList, params, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RequestGoToDeclaration requests the declaration locations for a position.
func (s *Session) RequestGoToDeclaration(ctx context.Context, params *analyzer.DeclarationParams) ([]protocol.Location, error) {
	var result []protocol.Location
	err := <-s.gate.Request(func() error {
		return s.transport.Request(ctx, analyzer.MethodGoToDeclaration, params, &result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RequestSwitchHeaderSource requests the counterpart file for a document.
func (s *Session) RequestSwitchHeaderSource(ctx context.Context, params *analyzer.SwitchHeaderSourceParams) (string, error) {
	var result string
	err := <-s.gate.Request(func() error {
		return s.transport.Request(ctx, analyzer.MethodSwitchHeaderSource, params, &result)
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// RequestDefaultIncludePaths requests the analyzer's default include paths.
func (s *Session) RequestDefaultIncludePaths(ctx context.Context) ([]string, error) {
	var result analyzer.IncludePathsResult
	err := <-s.gate.Request(func() error {
		return s.transport.Request(ctx, analyzer.MethodQueryDefaultIncludePaths, nil, &result)
	})
	if err != nil {
		return nil, err
	}
	return result.Paths, nil
}

// NotifySelectionChanged announces a cursor movement.
func (s *Session) NotifySelectionChanged(ctx context.Context, params *analyzer.SelectionChangedParams) {
	s.gate.Notify(func() error {
		return s.transport.Notify(s.ctx, analyzer.MethodTextEditorSelectionChange, params)
	})
}

// NotifyActiveDocumentChanged announces the newly focused document.
func (s *Session) NotifyActiveDocumentChanged(ctx context.Context, params *analyzer.ActiveDocumentParams) {
	s.gate.Notify(func() error {
		return s.transport.Notify(s.ctx, analyzer.MethodActiveDocumentChanged, params)
	})
}

// NotifyFileCreated announces a created file.
func (s *Session) NotifyFileCreated(ctx context.Context, uri protocol.DocumentURI) {
	s.gate.Notify(func() error {
		return s.transport.Notify(s.ctx, analyzer.MethodFileCreated, &analyzer.FileChangedParams{URI: uri})
	})
}

// NotifyFileDeleted announces a deleted file.
func (s *Session) NotifyFileDeleted(ctx context.Context, uri protocol.DocumentURI) {
	s.gate.Notify(func() error {
		return s.transport.Notify(s.ctx, analyzer.MethodFileDeleted, &analyzer.FileChangedParams{URI: uri})
	})
}

// NotifyResetDatabase asks the analyzer to rebuild its database.
func (s *Session) NotifyResetDatabase(ctx context.Context) {
	s.gate.Notify(func() error {
		return s.transport.Notify(s.ctx, analyzer.MethodResetDatabase, nil)
	})
}

// Pause stops background indexing. Idempotent.
func (s *Session) Pause(ctx context.Context) {
	s.mu.Lock()
	if s.paused || s.disposed {
		s.mu.Unlock()
		return
	}
	s.paused = true
	s.mu.Unlock()

	s.gate.Notify(func() error {
		return s.transport.Notify(s.ctx, analyzer.MethodPauseParsing, nil)
	})
}

// Resume restarts background indexing. Idempotent.
func (s *Session) Resume(ctx context.Context) {
	s.mu.Lock()
	if !s.paused || s.disposed {
		s.mu.Unlock()
		return
	}
	s.paused = false
	s.mu.Unlock()

	s.gate.Notify(func() error {
		return s.transport.Notify(s.ctx, analyzer.MethodResumeParsing, nil)
	})
}

// OnInterval is the periodic heartbeat. Ticks before the gate reaches a
// terminal state are dropped: nothing has happened yet, so there is nothing
// to keep alive or recheck.
func (s *Session) OnInterval(ctx context.Context) {
	if s.gate.State() != readygate.Ready {
		return
	}
	if err := s.transport.Notify(s.ctx, analyzer.MethodIntervalHeartbeat, nil); err != nil {
		s.logger.Debugw("heartbeat failed", "error", err)
	}
	s.checkSettings()
}

// Dispose stops the transport, settles in-flight requests, releases state
// model subscriptions, and clears tracked documents. Safe to call on a
// session that never reached Ready, and safe to call more than once.
func (s *Session) Dispose(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.state = entity.StateDisposed
	s.docs = make(map[protocol.DocumentURI]protocol.TextDocumentItem)
	transport := s.transport
	watcher := s.watcher
	s.mu.Unlock()

	// Reject anything still queued behind the gate, then cancel the session
	// context and close the transport so in-flight requests settle as failed
	// rather than hanging forever.
	s.gate.Fail(errors.ErrSessionDisposed)
	s.cancel()

	var err error
	if watcher != nil {
		err = multierr.Append(err, watcher.Close())
	}
	if transport != nil {
		err = multierr.Append(err, transport.Close(ctx))
	}
	<-s.monitorDone
	s.model.Close()
	return err
}

// initialize performs the analyzer handshake and opens the gate. The
// handshake request bypasses the gate since the gate exists to wait for it.
func (s *Session) initialize() {
	if err := s.snapshot.Initialize(s.getter); err != nil {
		s.logger.Warnw("reading initial settings", "error", err)
	}

	var include analyzer.IncludePathsResult
	if err := s.transport.Request(s.ctx, analyzer.MethodQueryDefaultIncludePaths, nil, &include); err != nil {
		// A handshake failure after a successful spawn means the process
		// died mid-initialization; the crash monitor owns recovery.
		s.logger.Warnw("analyzer handshake failed", "error", err)
		return
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.state = entity.StateReady
	s.mu.Unlock()

	s.logger.Infow("analyzer ready", "includePaths", len(include.Paths))
	s.gate.Resolve()
}

// monitor watches for transport termination and hands crashes to the
// registry. A disposed session never reports a crash. The crash handler may
// dispose this session, so monitorDone is closed before it is invoked. If no
// handler is installed yet, the crash is recorded as sticky and delivered by
// SetCrashHandler instead.
func (s *Session) monitor() {
	select {
	case <-s.ctx.Done():
		close(s.monitorDone)
		return
	case <-s.transport.Done():
	}

	s.mu.Lock()
	disposed := s.disposed
	onCrash := s.onCrash
	if !disposed && onCrash == nil {
		s.crashed = true
	}
	s.mu.Unlock()
	close(s.monitorDone)
	if disposed {
		return
	}

	s.stats.Counter("analyzer_crashes").Inc(1)
	s.logger.Warnw("analyzer connection lost", "error", s.transport.Err())
	if onCrash != nil {
		onCrash(s)
	}
}

// checkSettings diffs the on-disk configuration against the session's
// snapshot and notifies the analyzer of anything that changed.
func (s *Session) checkSettings() {
	changes, err := s.snapshot.Diff(s.getter)
	if err != nil {
		s.logger.Debugw("settings diff failed", "error", err)
		return
	}
	if !changes.Any() {
		return
	}

	if changes.FolderSettingsChanged {
		s.gate.Notify(func() error {
			return s.transport.Notify(s.ctx, analyzer.MethodFolderSettingsChanged, &analyzer.FolderSettingsParams{
				WorkspaceFolder: s.folder.Path,
				Settings:        changes.FolderSettings,
			})
		})
	}
	if changes.SelectedSettingChanged {
		s.model.Set(observable.FieldActiveConfigName, changes.SelectedSetting)
		s.gate.Notify(func() error {
			return s.transport.Notify(s.ctx, analyzer.MethodSelectedSettingChanged, &analyzer.SelectedSettingParams{
				WorkspaceFolder: s.folder.Path,
				Name:            changes.SelectedSetting,
			})
		})
	}
}

// onSettingsFileChanged reacts to watcher events on configuration files.
func (s *Session) onSettingsFileChanged(path string) {
	if filepath.Base(path) == _compileCommandsFile {
		s.gate.Notify(func() error {
			return s.transport.Notify(s.ctx, analyzer.MethodCompileCommandsChanged, &analyzer.FileChangedParams{
				URI: protocol.DocumentURI(s.folder.URI()),
			})
		})
		return
	}
	s.checkSettings()
}
