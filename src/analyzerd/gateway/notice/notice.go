// Package notice surfaces non-blocking, user-visible messages. Notices are
// fire-and-forget: callers never wait on a user response.
package notice

import (
	"fmt"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// Gateway delivers user-visible notices for session failures and prompts.
type Gateway interface {
	// CrashLoop reports that a folder's analyzer crashed repeatedly and has
	// been stopped for the remainder of the window lifetime.
	CrashLoop(folderName string, multiFolder bool)
	// Unsupported reports, once per session, that the analyzer cannot run on
	// this platform.
	Unsupported(sessionName string)
	// PromptReload asks the user to reload the window. Fire-and-forget.
	PromptReload(reason string)
}

// Sink receives rendered notices. The UI layer supplies one; the default
// logs through zap.
type Sink func(messageType protocol.MessageType, message string)

type gateway struct {
	sink   Sink
	logger *zap.SugaredLogger
}

// New returns a Gateway delivering notices to the given sink. A nil sink
// falls back to logging only.
func New(sink Sink, logger *zap.SugaredLogger) Gateway {
	g := &gateway{sink: sink, logger: logger}
	if g.sink == nil {
		g.sink = func(messageType protocol.MessageType, message string) {
			logger.Warnw("user notice", "type", messageType, "message", message)
		}
	}
	return g
}

func (g *gateway) CrashLoop(folderName string, multiFolder bool) {
	var msg string
	if multiFolder {
		msg = fmt.Sprintf("The language analyzer for folder %q crashed repeatedly and has been stopped. Other folders are unaffected.", folderName)
	} else {
		msg = "The language analyzer crashed repeatedly and has been stopped for this window."
	}
	g.logger.Errorw("analyzer crash loop", "folder", folderName)
	g.sink(protocol.MessageTypeError, msg)
}

func (g *gateway) Unsupported(sessionName string) {
	g.logger.Warnw("analyzer unsupported on this platform", "session", sessionName)
	g.sink(protocol.MessageTypeWarning, fmt.Sprintf("The language analyzer is not supported on this platform; features are disabled for %q.", sessionName))
}

func (g *gateway) PromptReload(reason string) {
	g.logger.Infow("reload prompt", "reason", reason)
	g.sink(protocol.MessageTypeInfo, fmt.Sprintf("Reload the window to apply changes: %s", reason))
}
