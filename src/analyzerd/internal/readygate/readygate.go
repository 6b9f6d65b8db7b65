// Package readygate defers outbound analyzer calls until a session has
// finished initializing. Editor activity begins before the analyzer
// handshake completes; every call submitted in that window must be captured
// and replayed in order, never dropped.
package readygate

import (
	"sync"

	"github.com/langtools/analyzerd/src/analyzerd/internal/errors"
	tally "github.com/uber-go/tally"
)

// State describes the gate's position. Ready and Failed are terminal;
// a gate never re-enters Pending.
type State int

const (
	// Pending indicates initialization is still in progress and calls are queued.
	Pending State = iota
	// Ready indicates queued calls have been replayed and new calls run immediately.
	Ready
	// Failed indicates the session is unsupported and all calls reject immediately.
	Failed
)

type entry struct {
	run    func() error
	result chan error // nil for notification-shaped calls
}

// Gate is a per-session barrier over outbound calls.
type Gate struct {
	mu    sync.Mutex
	state State
	err   error
	queue []entry
	depth tally.Gauge
}

// New returns a Gate in the Pending state.
func New(stats tally.Scope) *Gate {
	return &Gate{
		depth: stats.Gauge("deferred_queue_depth"),
	}
}

// State returns the gate's current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Notify submits a fire-and-forget call. While Pending it is queued in FIFO
// order; once Ready it runs immediately; after Failed it is silently dropped.
func (g *Gate) Notify(run func() error) {
	g.mu.Lock()
	switch g.state {
	case Pending:
		g.queue = append(g.queue, entry{run: run})
		g.depth.Update(float64(len(g.queue)))
		g.mu.Unlock()
		return
	case Failed:
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	run()
}

// Request submits a request-shaped call and returns a channel carrying its
// outcome. While Pending the call is queued in FIFO order; once Ready it runs
// synchronously; after Failed it rejects immediately without any transport
// call being attempted.
func (g *Gate) Request(run func() error) <-chan error {
	result := make(chan error, 1)
	g.mu.Lock()
	switch g.state {
	case Pending:
		g.queue = append(g.queue, entry{run: run, result: result})
		g.depth.Update(float64(len(g.queue)))
		g.mu.Unlock()
		return result
	case Failed:
		err := g.err
		g.mu.Unlock()
		result <- err
		return result
	}
	g.mu.Unlock()
	result <- run()
	return result
}

// Resolve transitions Pending to Ready and replays every queued call in
// strict submission order. Calling Resolve on a terminal gate is a no-op.
func (g *Gate) Resolve() {
	g.mu.Lock()
	if g.state != Pending {
		g.mu.Unlock()
		return
	}
	g.state = Ready
	queued := g.queue
	g.queue = nil
	g.depth.Update(0)
	g.mu.Unlock()

	for _, e := range queued {
		err := e.run()
		if e.result != nil {
			e.result <- err
		}
	}
}

// Fail transitions Pending to Failed, rejecting every queued request with the
// given error and dropping queued notifications. A nil err is replaced with
// the unsupported-session error. Calling Fail on a terminal gate is a no-op.
func (g *Gate) Fail(err error) {
	if err == nil {
		err = errors.ErrUnsupportedSession
	}
	g.mu.Lock()
	if g.state != Pending {
		g.mu.Unlock()
		return
	}
	g.state = Failed
	g.err = err
	queued := g.queue
	g.queue = nil
	g.depth.Update(0)
	g.mu.Unlock()

	for _, e := range queued {
		if e.result != nil {
			e.result <- err
		}
	}
}
