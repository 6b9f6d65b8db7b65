// Package factory provides fixtures shared by tests across the service.
package factory

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/langtools/analyzerd/src/analyzerd/internal/errors"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// UUID is a user-defined factory for a random uuid.UUID.
func UUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// TextDocument is a factory for a text document rooted at the given path.
func TextDocument(path string) protocol.TextDocumentItem {
	return protocol.TextDocumentItem{
		URI:        uri.File(path),
		LanguageID: "cpp",
		Version:    1,
		Text:       "",
	}
}

// CallKind distinguishes request- and notification-shaped transport calls.
type CallKind int

const (
	// KindRequest marks a request-shaped call.
	KindRequest CallKind = iota
	// KindNotify marks a notification-shaped call.
	KindNotify
)

// RecordedCall is one call observed by a FakeTransport.
type RecordedCall struct {
	Kind   CallKind
	Method string
	Params interface{}
}

// FakeTransport implements analyzer.Transport for tests, recording every
// call in submission order.
type FakeTransport struct {
	mu    sync.Mutex
	calls []RecordedCall
	err   error

	// OnRequest, when set, computes the outcome of request-shaped calls.
	OnRequest func(method string, params, result interface{}) error
	// Gate, when set, blocks request-shaped calls until it is closed or the
	// transport ends. Used to hold a session in its initializing state.
	Gate chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// NewFakeTransport returns an open FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{done: make(chan struct{})}
}

// Request records the call and blocks on Gate when one is set.
func (t *FakeTransport) Request(ctx context.Context, method string, params, result interface{}) error {
	t.record(RecordedCall{Kind: KindRequest, Method: method, Params: params})
	if t.Gate != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.done:
			return errors.New("analyzer connection closed")
		case <-t.Gate:
		}
	}
	select {
	case <-t.done:
		return errors.New("analyzer connection closed")
	default:
	}
	if t.OnRequest != nil {
		return t.OnRequest(method, params, result)
	}
	return nil
}

// Notify records the call.
func (t *FakeTransport) Notify(ctx context.Context, method string, params interface{}) error {
	select {
	case <-t.done:
		return errors.New("analyzer connection closed")
	default:
	}
	t.record(RecordedCall{Kind: KindNotify, Method: method, Params: params})
	return nil
}

// Done is closed when the transport ends.
func (t *FakeTransport) Done() <-chan struct{} {
	return t.done
}

// Err returns the terminal error set by Crash.
func (t *FakeTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close ends the transport cleanly.
func (t *FakeTransport) Close(ctx context.Context) error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

// Crash ends the transport as if the analyzer process died.
func (t *FakeTransport) Crash(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	t.closeOnce.Do(func() { close(t.done) })
}

// Calls returns every recorded call in submission order.
func (t *FakeTransport) Calls() []RecordedCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RecordedCall, len(t.calls))
	copy(out, t.calls)
	return out
}

// Methods returns the method names of every recorded call in order.
func (t *FakeTransport) Methods() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.calls))
	for _, c := range t.calls {
		out = append(out, c.Method)
	}
	return out
}

func (t *FakeTransport) record(c RecordedCall) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, c)
}

// FakeSettings implements settings.Getter with in-memory values.
type FakeSettings struct {
	mu       sync.Mutex
	values   map[string]string
	selected string
	Err      error
}

// NewFakeSettings returns an empty FakeSettings.
func NewFakeSettings() *FakeSettings {
	return &FakeSettings{values: map[string]string{}}
}

// SetValues replaces the folder settings returned by the getter.
func (f *FakeSettings) SetValues(values map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = values
}

// SetSelected replaces the selected configuration name.
func (f *FakeSettings) SetSelected(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = name
}

// FolderSettings implements settings.Getter.
func (f *FakeSettings) FolderSettings(folder string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

// SelectedSetting implements settings.Getter.
func (f *FakeSettings) SelectedSetting(folder string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	return f.selected, nil
}
