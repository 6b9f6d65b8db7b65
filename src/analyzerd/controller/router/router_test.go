package router

import (
	"context"
	"testing"
	"time"

	"github.com/langtools/analyzerd/src/analyzerd/controller/session"
	"github.com/langtools/analyzerd/src/analyzerd/entity"
	"github.com/langtools/analyzerd/src/analyzerd/factory"
	"github.com/langtools/analyzerd/src/analyzerd/gateway/analyzer"
	"github.com/langtools/analyzerd/src/analyzerd/gateway/notice"
	"github.com/langtools/analyzerd/src/analyzerd/internal/clock"
	"github.com/langtools/analyzerd/src/analyzerd/internal/crashpolicy"
	"github.com/langtools/analyzerd/src/analyzerd/repository/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tally "github.com/uber-go/tally"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type fixture struct {
	t      *testing.T
	router Router
	reg    registry.Registry
	stats  tally.TestScope
	logger *zap.SugaredLogger
}

func newFixture(t *testing.T) (*fixture, func(name, path string) (*session.Session, *factory.FakeTransport)) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	stats := tally.NewTestScope("testing", make(map[string]string, 0))
	notices := notice.New(func(protocol.MessageType, string) {}, logger)

	transports := make(map[string]*factory.FakeTransport)
	sessionFactory := func(ctx context.Context, folder entity.WorkspaceFolder) (*session.Session, error) {
		ft := factory.NewFakeTransport()
		s := session.New(ctx, session.Params{
			Name:           folder.Name,
			Folder:         folder,
			Transport:      ft,
			SettingsGetter: factory.NewFakeSettings(),
			Notices:        notices,
			Logger:         logger,
			Stats:          stats,
		})
		transports[folder.Path] = ft
		return s, nil
	}

	reg := registry.New(registry.Params{
		Logger:  logger,
		Stats:   stats,
		Clock:   clock.New(),
		Notices: notices,
		Policy:  crashpolicy.New(0, 0),
		Factory: sessionFactory,
	})
	t.Cleanup(func() { reg.DisposeAll(context.Background()) })

	f := &fixture{
		t:      t,
		router: New(Params{Registry: reg, Logger: logger, Stats: stats}),
		reg:    reg,
		stats:  stats,
		logger: logger,
	}

	addSession := func(name, path string) (*session.Session, *factory.FakeTransport) {
		t.Helper()
		s, err := sessionFactory(context.Background(), entity.WorkspaceFolder{Name: name, Path: path})
		require.NoError(t, err)
		require.NoError(t, reg.Register(context.Background(), s))
		require.Eventually(t, func() bool {
			return s.State() == entity.StateReady
		}, 5*time.Second, time.Millisecond)
		return s, transports[path]
	}
	return f, addSession
}

func (f *fixture) suppressedCount() int64 {
	for _, c := range f.stats.Snapshot().Counters() {
		if c.Name() == "testing.suppressed_calls" {
			return c.Value()
		}
	}
	return 0
}

func countMethod(ft *factory.FakeTransport, method string) int {
	n := 0
	for _, m := range ft.Methods() {
		if m == method {
			n++
		}
	}
	return n
}

func TestQueryCallsReachOnlyTheActiveSession(t *testing.T) {
	f, addSession := newFixture(t)
	a, ftA := addSession("a", "/work/a")
	b, ftB := addSession("b", "/work/b")

	// a is active; a query targeting b is suppressed with a neutral result.
	nav, err := f.router.NavigationList(context.Background(), b, &analyzer.NavigationListParams{})
	require.NoError(t, err)
	assert.NotNil(t, nav)
	assert.Empty(t, nav.Items)

	locs, err := f.router.GoToDeclaration(context.Background(), b, &analyzer.DeclarationParams{})
	require.NoError(t, err)
	assert.Nil(t, locs)

	target, err := f.router.SwitchHeaderSource(context.Background(), b, &analyzer.SwitchHeaderSourceParams{})
	require.NoError(t, err)
	assert.Empty(t, target)

	assert.Zero(t, countMethod(ftB, analyzer.MethodNavigationList))
	assert.Zero(t, countMethod(ftB, analyzer.MethodGoToDeclaration))
	assert.Zero(t, countMethod(ftB, analyzer.MethodSwitchHeaderSource))
	assert.Equal(t, int64(3), f.suppressedCount())

	// The same queries against the active session are forwarded.
	_, err = f.router.NavigationList(context.Background(), a, &analyzer.NavigationListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, countMethod(ftA, analyzer.MethodNavigationList))
}

func TestSwitchingActiveSessionDoesNotCancelInFlightQueries(t *testing.T) {
	f, addSession := newFixture(t)
	a, ftA := addSession("a", "/work/a")
	b, ftB := addSession("b", "/work/b")

	inFlight := make(chan struct{})
	release := make(chan struct{})
	ftA.OnRequest = func(method string, params, result interface{}) error {
		if method == analyzer.MethodNavigationList {
			close(inFlight)
			<-release
		}
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.router.NavigationList(context.Background(), a, &analyzer.NavigationListParams{})
		done <- err
	}()
	<-inFlight

	// Focus moves to b while a's query is still on the wire.
	f.reg.SetActiveSession(b)

	// New queries go to b; the in-flight query on a completes normally.
	_, err := f.router.NavigationList(context.Background(), b, &analyzer.NavigationListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, countMethod(ftB, analyzer.MethodNavigationList))

	close(release)
	assert.NoError(t, <-done)

	// But a is background now: further queries against it are suppressed.
	_, err = f.router.NavigationList(context.Background(), a, &analyzer.NavigationListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, countMethod(ftA, analyzer.MethodNavigationList))
}

func TestDidOpenAdmittedByOwnershipNotFocus(t *testing.T) {
	f, addSession := newFixture(t)
	a, ftA := addSession("a", "/work/a")
	b, ftB := addSession("b", "/work/b")

	// b is background, but it owns the document, so the open is admitted.
	doc := factory.TextDocument("/work/b/util.cpp")
	require.NoError(t, f.router.DidOpen(context.Background(), b, doc))
	assert.True(t, b.Tracks(protocol.TextDocumentIdentifier{URI: doc.URI}))
	assert.Equal(t, 1, countMethod(ftB, analyzer.MethodDidOpen))

	// The same event targeting a non-owner is dropped without error.
	require.NoError(t, f.router.DidOpen(context.Background(), a, doc))
	assert.False(t, a.Tracks(protocol.TextDocumentIdentifier{URI: doc.URI}))
	assert.Zero(t, countMethod(ftA, analyzer.MethodDidOpen))
	assert.Equal(t, int64(1), f.suppressedCount())
}

func TestDidCloseAdmittedByOwnership(t *testing.T) {
	f, addSession := newFixture(t)
	a, _ := addSession("a", "/work/a")
	b, _ := addSession("b", "/work/b")

	doc := factory.TextDocument("/work/b/util.cpp")
	id := protocol.TextDocumentIdentifier{URI: doc.URI}
	require.NoError(t, f.router.DidOpen(context.Background(), b, doc))

	// Dropped: a does not own the document, and b keeps tracking it.
	require.NoError(t, f.router.DidClose(context.Background(), a, id))
	assert.True(t, b.Tracks(id))

	require.NoError(t, f.router.DidClose(context.Background(), b, id))
	assert.False(t, b.Tracks(id))
}

func TestEditorStateNotificationsGatedByFocus(t *testing.T) {
	f, addSession := newFixture(t)
	a, ftA := addSession("a", "/work/a")
	b, ftB := addSession("b", "/work/b")

	params := &analyzer.SelectionChangedParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri.File("/work/b/util.cpp")},
	}
	f.router.SelectionChanged(context.Background(), b, params)
	assert.Zero(t, countMethod(ftB, analyzer.MethodTextEditorSelectionChange))

	f.reg.SetActiveSession(b)
	f.router.SelectionChanged(context.Background(), b, params)
	assert.Equal(t, 1, countMethod(ftB, analyzer.MethodTextEditorSelectionChange))

	f.router.ActiveDocumentChanged(context.Background(), b, &analyzer.ActiveDocumentParams{})
	assert.Equal(t, 1, countMethod(ftB, analyzer.MethodActiveDocumentChanged))

	// a lost focus along the way.
	f.router.ActiveDocumentChanged(context.Background(), a, &analyzer.ActiveDocumentParams{})
	assert.Zero(t, countMethod(ftA, analyzer.MethodActiveDocumentChanged))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
