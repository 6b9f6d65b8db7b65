// Package settings keeps each session's last-known view of its on-disk
// analyzer configuration. Every session owns its own snapshot keyed by
// workspace folder; there is no shared cache between sessions.
package settings

import (
	"sync"
)

// Getter is the external collaborator that reads the current configuration
// values from disk or editor storage.
type Getter interface {
	// FolderSettings returns the current analyzer settings for the folder.
	FolderSettings(folder string) (map[string]string, error)
	// SelectedSetting returns the name of the currently selected configuration.
	SelectedSetting(folder string) (string, error)
}

// Changes describes what differs between the snapshot and the current
// on-disk configuration.
type Changes struct {
	FolderSettingsChanged  bool
	SelectedSettingChanged bool
	SelectedSetting        string
	FolderSettings         map[string]string
}

// Any reports whether anything changed.
func (c Changes) Any() bool {
	return c.FolderSettingsChanged || c.SelectedSettingChanged
}

// Snapshot is one session's last-known settings state.
type Snapshot struct {
	mu       sync.Mutex
	folder   string
	values   map[string]string
	selected string
}

// NewSnapshot returns an empty snapshot for the given workspace folder.
func NewSnapshot(folder string) *Snapshot {
	return &Snapshot{
		folder: folder,
		values: make(map[string]string),
	}
}

// Folder returns the workspace folder this snapshot is keyed by.
func (s *Snapshot) Folder() string {
	return s.folder
}

// Initialize records the current configuration as the baseline.
func (s *Snapshot) Initialize(g Getter) error {
	values, err := g.FolderSettings(s.folder)
	if err != nil {
		return err
	}
	selected, err := g.SelectedSetting(s.folder)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = copyValues(values)
	s.selected = selected
	return nil
}

// Diff compares the current configuration against the snapshot, updates the
// snapshot to the current state, and returns what changed.
func (s *Snapshot) Diff(g Getter) (Changes, error) {
	values, err := g.FolderSettings(s.folder)
	if err != nil {
		return Changes{}, err
	}
	selected, err := g.SelectedSetting(s.folder)
	if err != nil {
		return Changes{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changes := Changes{}
	if !equalValues(s.values, values) {
		changes.FolderSettingsChanged = true
		changes.FolderSettings = copyValues(values)
	}
	if s.selected != selected {
		changes.SelectedSettingChanged = true
		changes.SelectedSetting = selected
	}

	s.values = copyValues(values)
	s.selected = selected
	return changes, nil
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func equalValues(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
