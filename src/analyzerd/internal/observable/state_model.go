package observable

import (
	"sync"

	"go.uber.org/zap"
)

// FieldName identifies one of the state model's observable fields.
type FieldName string

const (
	// FieldIsIndexing reports whether the analyzer is building its index.
	FieldIsIndexing FieldName = "isIndexing"
	// FieldIsAnalyzing reports whether the analyzer is parsing open documents.
	FieldIsAnalyzing FieldName = "isAnalyzing"
	// FieldNavigationText holds the current navigation breadcrumb.
	FieldNavigationText FieldName = "navigationText"
	// FieldParserStatusText holds the analyzer's parser status line.
	FieldParserStatusText FieldName = "parserStatusText"
	// FieldActiveConfigName holds the name of the selected configuration.
	FieldActiveConfigName FieldName = "activeConfigName"
)

// StateModel is the set of observable UI-facing fields owned by one session.
// All fields start disabled; Activate and Deactivate toggle every field as a
// single operation so there is no partially activated state.
type StateModel struct {
	mu     sync.Mutex
	logger *zap.SugaredLogger

	IsIndexing       *Field[bool]
	IsAnalyzing      *Field[bool]
	NavigationText   *Field[string]
	ParserStatusText *Field[string]
	ActiveConfigName *Field[string]
}

// NewStateModel returns a StateModel with all fields disabled.
func NewStateModel(logger *zap.SugaredLogger) *StateModel {
	return &StateModel{
		logger:           logger,
		IsIndexing:       NewField[bool](),
		IsAnalyzing:      NewField[bool](),
		NavigationText:   NewField[string](),
		ParserStatusText: NewField[string](),
		ActiveConfigName: NewField[string](),
	}
}

// Set stores a value into the named field. An unknown field name is a
// programming error: it panics under a development logger and is otherwise
// ignored.
func (m *StateModel) Set(name FieldName, value interface{}) {
	switch name {
	case FieldIsIndexing:
		if v, ok := value.(bool); ok {
			m.IsIndexing.Set(v)
			return
		}
	case FieldIsAnalyzing:
		if v, ok := value.(bool); ok {
			m.IsAnalyzing.Set(v)
			return
		}
	case FieldNavigationText:
		if v, ok := value.(string); ok {
			m.NavigationText.Set(v)
			return
		}
	case FieldParserStatusText:
		if v, ok := value.(string); ok {
			m.ParserStatusText.Set(v)
			return
		}
	case FieldActiveConfigName:
		if v, ok := value.(string); ok {
			m.ActiveConfigName.Set(v)
			return
		}
	}
	m.logger.DPanicw("unknown state model field", "field", name, "value", value)
}

// Activate enables publication on every field atomically.
func (m *StateModel) Activate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setEnabledLocked(true)
}

// Deactivate disables publication on every field atomically. Values written
// while deactivated are stored but not published.
func (m *StateModel) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setEnabledLocked(false)
}

// Close releases all subscriptions and makes subsequent writes no-ops.
func (m *StateModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IsIndexing.close()
	m.IsAnalyzing.close()
	m.NavigationText.close()
	m.ParserStatusText.close()
	m.ActiveConfigName.close()
}

func (m *StateModel) setEnabledLocked(enabled bool) {
	m.IsIndexing.setEnabled(enabled)
	m.IsAnalyzing.setEnabled(enabled)
	m.NavigationText.setEnabled(enabled)
	m.ParserStatusText.setEnabled(enabled)
	m.ActiveConfigName.setEnabled(enabled)
}
