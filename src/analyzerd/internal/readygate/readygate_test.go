package readygate

import (
	"fmt"
	"testing"

	"github.com/langtools/analyzerd/src/analyzerd/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tally "github.com/uber-go/tally"
)

func newTestGate() *Gate {
	return New(tally.NewTestScope("testing", make(map[string]string, 0)))
}

func TestResolveReplaysInSubmissionOrder(t *testing.T) {
	g := newTestGate()

	const n = 25
	var order []int
	for i := 0; i < n; i++ {
		i := i
		if i%3 == 0 {
			g.Notify(func() error {
				order = append(order, i)
				return nil
			})
			continue
		}
		g.Request(func() error {
			order = append(order, i)
			return nil
		})
	}
	assert.Empty(t, order)

	g.Resolve()

	require.Len(t, order, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, i, order[i])
	}
}

func TestRequestResultsDeliveredAfterResolve(t *testing.T) {
	g := newTestGate()

	okResult := g.Request(func() error { return nil })
	wantErr := fmt.Errorf("analyzer rejected the call")
	errResult := g.Request(func() error { return wantErr })

	g.Resolve()

	assert.NoError(t, <-okResult)
	assert.Equal(t, wantErr, <-errResult)
}

func TestFailRejectsQueuedAndSubsequentRequests(t *testing.T) {
	g := newTestGate()

	transportCalls := 0
	queued := g.Request(func() error {
		transportCalls++
		return nil
	})
	g.Notify(func() error {
		transportCalls++
		return nil
	})

	g.Fail(nil)

	assert.ErrorIs(t, <-queued, errors.ErrUnsupportedSession)

	// Submitted after the terminal state: rejected immediately, no queuing.
	late := g.Request(func() error {
		transportCalls++
		return nil
	})
	assert.ErrorIs(t, <-late, errors.ErrUnsupportedSession)
	g.Notify(func() error {
		transportCalls++
		return nil
	})

	assert.Equal(t, 0, transportCalls)
	assert.Equal(t, Failed, g.State())
}

func TestReadyRunsSubmissionsImmediately(t *testing.T) {
	g := newTestGate()
	g.Resolve()
	require.Equal(t, Ready, g.State())

	ran := false
	result := g.Request(func() error {
		ran = true
		return nil
	})
	assert.NoError(t, <-result)
	assert.True(t, ran)

	notified := false
	g.Notify(func() error {
		notified = true
		return nil
	})
	assert.True(t, notified)
}

func TestTerminalStatesAreSticky(t *testing.T) {
	g := newTestGate()
	g.Resolve()
	g.Fail(errors.New("too late"))
	assert.Equal(t, Ready, g.State())

	g2 := newTestGate()
	g2.Fail(nil)
	g2.Resolve()
	assert.Equal(t, Failed, g2.State())
}

func TestFailWithCustomError(t *testing.T) {
	g := newTestGate()
	queued := g.Request(func() error { return nil })
	g.Fail(errors.ErrSessionDisposed)
	assert.ErrorIs(t, <-queued, errors.ErrSessionDisposed)
}
