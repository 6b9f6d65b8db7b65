package session

import (
	"context"
	"encoding/json"

	"github.com/langtools/analyzerd/src/analyzerd/gateway/analyzer"
	"github.com/langtools/analyzerd/src/analyzerd/internal/observable"
	"go.lsp.dev/jsonrpc2"
)

const (
	_statusIndexing  = "indexing"
	_statusAnalyzing = "analyzing"
)

// handleInbound dispatches server-to-client events. Each event type maps to
// exactly one handler, and handlers return immediately: state model writes
// are synchronous and cheap, and anything involving the user is
// fire-and-forget.
func (s *Session) handleInbound(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	switch req.Method() {
	case analyzer.MethodNavigationReport:
		var report analyzer.NavigationReport
		if err := json.Unmarshal(req.Params(), &report); err != nil {
			return reply(ctx, nil, err)
		}
		s.model.Set(observable.FieldNavigationText, report.Navigation)

	case analyzer.MethodTagParseStatus:
		var report analyzer.StatusReport
		if err := json.Unmarshal(req.Params(), &report); err != nil {
			return reply(ctx, nil, err)
		}
		s.model.Set(observable.FieldParserStatusText, report.Status)
		s.model.Set(observable.FieldIsIndexing, report.Status == _statusIndexing)

	case analyzer.MethodGeneralStatus:
		var report analyzer.StatusReport
		if err := json.Unmarshal(req.Params(), &report); err != nil {
			return reply(ctx, nil, err)
		}
		s.model.Set(observable.FieldIsAnalyzing, report.Status == _statusAnalyzing)

	case analyzer.MethodReloadWindow:
		if s.notices != nil {
			// The user's confirmation must never block the inbound stream.
			go s.notices.PromptReload("the analyzer requested a window reload")
		}

	case analyzer.MethodTelemetryEvent:
		var event analyzer.TelemetryEvent
		if err := json.Unmarshal(req.Params(), &event); err != nil {
			return reply(ctx, nil, err)
		}
		s.stats.Counter("telemetry_events").Inc(1)
		s.logger.Infow("analyzer telemetry", "name", event.Name, "properties", event.Properties)

	case analyzer.MethodDebugProtocolOutput, analyzer.MethodDebugLogOutput:
		var out analyzer.DebugOutput
		if err := json.Unmarshal(req.Params(), &out); err != nil {
			return reply(ctx, nil, err)
		}
		s.logger.Debugw("analyzer debug output", "method", req.Method(), "output", out.Output)

	default:
		s.logger.Debugw("unhandled analyzer event", "method", req.Method())
	}

	return reply(ctx, nil, nil)
}
