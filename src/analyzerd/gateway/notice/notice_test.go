package notice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recorded struct {
	messageType protocol.MessageType
	message     string
}

func newRecordingGateway() (Gateway, *[]recorded) {
	var out []recorded
	g := New(func(messageType protocol.MessageType, message string) {
		out = append(out, recorded{messageType: messageType, message: message})
	}, zap.NewNop().Sugar())
	return g, &out
}

func TestCrashLoopMultiFolderNamesTheFolder(t *testing.T) {
	g, out := newRecordingGateway()
	g.CrashLoop("backend", true)

	require.Len(t, *out, 1)
	assert.Equal(t, protocol.MessageTypeError, (*out)[0].messageType)
	assert.Contains(t, (*out)[0].message, `"backend"`)
	assert.Contains(t, (*out)[0].message, "Other folders are unaffected")
}

func TestCrashLoopSingleFolderOmitsTheName(t *testing.T) {
	g, out := newRecordingGateway()
	g.CrashLoop("backend", false)

	require.Len(t, *out, 1)
	assert.NotContains(t, (*out)[0].message, "backend")
	assert.Contains(t, (*out)[0].message, "stopped for this window")
}

func TestUnsupportedWarns(t *testing.T) {
	g, out := newRecordingGateway()
	g.Unsupported("app")

	require.Len(t, *out, 1)
	assert.Equal(t, protocol.MessageTypeWarning, (*out)[0].messageType)
	assert.Contains(t, (*out)[0].message, `"app"`)
}

func TestPromptReloadCarriesReason(t *testing.T) {
	g, out := newRecordingGateway()
	g.PromptReload("settings schema changed")

	require.Len(t, *out, 1)
	assert.Equal(t, protocol.MessageTypeInfo, (*out)[0].messageType)
	assert.Contains(t, (*out)[0].message, "settings schema changed")
}

func TestNilSinkFallsBackToLogging(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	g := New(nil, zap.New(core).Sugar())

	g.CrashLoop("backend", false)
	require.GreaterOrEqual(t, logs.Len(), 1)
}
