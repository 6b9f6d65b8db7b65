// Package analyzer is the gateway to the external language-analysis process.
// It owns the wire-method catalogue and the transport over which requests
// and notifications are exchanged.
package analyzer

import (
	"go.lsp.dev/protocol"
)

// Outbound request methods. This is a closed set: adding a method is a
// protocol version change, not a runtime decision.
const (
	MethodQueryDefaultIncludePaths = "analyzer/queryDefaultIncludePaths"
	MethodSwitchHeaderSource       = "analyzer/switchHeaderSource"
	MethodNavigationList           = "analyzer/navigationList"
	MethodGoToDeclaration          = "analyzer/goToDeclaration"
)

// Outbound notification methods.
const (
	MethodDidOpen                   = "analyzer/didOpen"
	MethodFileCreated               = "analyzer/fileCreated"
	MethodFileDeleted               = "analyzer/fileDeleted"
	MethodResetDatabase             = "analyzer/resetDatabase"
	MethodPauseParsing              = "analyzer/pauseParsing"
	MethodResumeParsing             = "analyzer/resumeParsing"
	MethodActiveDocumentChanged     = "analyzer/activeDocumentChanged"
	MethodTextEditorSelectionChange = "analyzer/textEditorSelectionChange"
	MethodFolderSettingsChanged     = "analyzer/didChangeFolderSettings"
	MethodCompileCommandsChanged    = "analyzer/didChangeCompileCommands"
	MethodSelectedSettingChanged    = "analyzer/didChangeSelectedSetting"
	MethodIntervalHeartbeat         = "analyzer/intervalHeartbeat"
)

// Inbound notification methods.
const (
	MethodReloadWindow        = "analyzer/reloadWindow"
	MethodTelemetryEvent      = "analyzer/telemetryEvent"
	MethodNavigationReport    = "analyzer/reportNavigation"
	MethodTagParseStatus      = "analyzer/reportTagParseStatus"
	MethodGeneralStatus       = "analyzer/reportStatus"
	MethodDebugProtocolOutput = "analyzer/debugProtocol"
	MethodDebugLogOutput      = "analyzer/debugLog"
)

// NavigationListParams requests the navigation items for a document position.
type NavigationListParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Position     protocol.Position               `json:"position"`
}

// NavigationList is the analyzer's response to a navigation-list request.
type NavigationList struct {
	Items []NavigationItem `json:"items"`
}

// NavigationItem is one entry in a navigation list.
type NavigationItem struct {
	Label string         `json:"label"`
	Range protocol.Range `json:"range"`
}

// DeclarationParams requests the declaration location for a document position.
type DeclarationParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Position     protocol.Position               `json:"position"`
}

// SwitchHeaderSourceParams requests the counterpart file for a document.
type SwitchHeaderSourceParams struct {
	WorkspaceFolder string                          `json:"workspaceFolder"`
	TextDocument    protocol.TextDocumentIdentifier `json:"textDocument"`
}

// IncludePathsResult carries the analyzer's default include paths.
type IncludePathsResult struct {
	Paths []string `json:"paths"`
}

// DidOpenParams announces a newly tracked document to the analyzer.
type DidOpenParams struct {
	TextDocument protocol.TextDocumentItem `json:"textDocument"`
}

// FileChangedParams announces a created or deleted file.
type FileChangedParams struct {
	URI protocol.DocumentURI `json:"uri"`
}

// ActiveDocumentParams announces the document now focused in the editor.
type ActiveDocumentParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
}

// SelectionChangedParams announces a cursor movement in the active document.
type SelectionChangedParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Selection    protocol.Range                  `json:"selection"`
}

// FolderSettingsParams carries updated per-folder analyzer settings.
type FolderSettingsParams struct {
	WorkspaceFolder string            `json:"workspaceFolder"`
	Settings        map[string]string `json:"settings"`
}

// SelectedSettingParams announces a change of the active configuration.
type SelectedSettingParams struct {
	WorkspaceFolder string `json:"workspaceFolder"`
	Name            string `json:"name"`
}

// StatusReport is the payload of tag-parse-status and general-status events.
type StatusReport struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// NavigationReport is the payload of an inbound navigation event.
type NavigationReport struct {
	Navigation string `json:"navigation"`
}

// TelemetryEvent is the payload of an inbound telemetry notification.
type TelemetryEvent struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
}

// DebugOutput is the payload of debug-protocol and debug-log events.
type DebugOutput struct {
	Output string `json:"output"`
}
