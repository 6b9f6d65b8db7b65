// Package entity contains the domain types for the analyzerd service.
package entity

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"go.lsp.dev/uri"
)

type keyType string

// SessionContextKey indicates the key to be used to identify the session UUID in the context.
const SessionContextKey keyType = "SessionUUID"

// SessionState describes the lifecycle position of a Session.
type SessionState int

const (
	// StateNotStarted indicates the session has been constructed but initialization has not begun.
	StateNotStarted SessionState = iota
	// StateInitializing indicates the analyzer handshake is in progress and calls are being deferred.
	StateInitializing
	// StateReady indicates the analyzer has completed its handshake and calls flow through directly.
	StateReady
	// StateFailed indicates the analyzer could not be started on this platform.
	StateFailed
	// StateDisposed indicates the session has been shut down and will accept no further calls.
	StateDisposed
)

// String implements fmt.Stringer.
func (s SessionState) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// WorkspaceFolder identifies the folder a session is scoped to.
// A zero value folder marks the ownerless fallback session.
type WorkspaceFolder struct {
	Name string
	Path string
}

// IsZero reports whether this folder is the ownerless fallback.
func (f WorkspaceFolder) IsZero() bool {
	return f.Path == ""
}

// Contains reports whether the given document path is inside this folder.
func (f WorkspaceFolder) Contains(path string) bool {
	if f.IsZero() {
		return false
	}
	rel, err := filepath.Rel(f.Path, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// URI returns the folder path as a file URI.
func (f WorkspaceFolder) URI() uri.URI {
	return uri.File(f.Path)
}

// Session entity representing a single analyzer session.
type Session struct {
	UUID      uuid.UUID       `json:"uuid" zap:"uuid"`
	Name      string          `json:"name" zap:"name"`
	Folder    WorkspaceFolder `json:"folder" zap:"folder"`
	State     SessionState    `json:"state" zap:"state"`
	Supported bool            `json:"supported" zap:"supported"`
}

// CrashRecord is the rolling history of analyzer crash timestamps for one
// workspace folder. It outlives any individual Session: when a crashed
// session is replaced, the record migrates to the replacement so the crash
// count survives.
type CrashRecord struct {
	timestamps []time.Time
}

// NewCrashRecord returns an empty crash record.
func NewCrashRecord() *CrashRecord {
	return &CrashRecord{}
}

// Append adds a crash timestamp to the end of the record.
func (r *CrashRecord) Append(t time.Time) {
	r.timestamps = append(r.timestamps, t)
}

// Len returns the number of recorded crashes.
func (r *CrashRecord) Len() int {
	return len(r.timestamps)
}

// Oldest returns the earliest recorded crash time. Zero if empty.
func (r *CrashRecord) Oldest() time.Time {
	if len(r.timestamps) == 0 {
		return time.Time{}
	}
	return r.timestamps[0]
}

// Newest returns the most recent crash time. Zero if empty.
func (r *CrashRecord) Newest() time.Time {
	if len(r.timestamps) == 0 {
		return time.Time{}
	}
	return r.timestamps[len(r.timestamps)-1]
}

// DropOldest removes the earliest entry, keeping the rest in order.
func (r *CrashRecord) DropOldest() {
	if len(r.timestamps) == 0 {
		return
	}
	r.timestamps = r.timestamps[1:]
}

// Timestamps returns a copy of the recorded crash times, oldest first.
func (r *CrashRecord) Timestamps() []time.Time {
	out := make([]time.Time, len(r.timestamps))
	copy(out, r.timestamps)
	return out
}
