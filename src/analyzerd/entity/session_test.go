package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceFolderContains(t *testing.T) {
	folder := WorkspaceFolder{Name: "app", Path: "/work/app"}

	assert.True(t, folder.Contains("/work/app/src/main.cpp"))
	assert.True(t, folder.Contains("/work/app"))
	assert.False(t, folder.Contains("/work/application/main.cpp"))
	assert.False(t, folder.Contains("/work"))
	assert.False(t, folder.Contains("/elsewhere/main.cpp"))
}

func TestZeroFolderOwnsNothing(t *testing.T) {
	var folder WorkspaceFolder
	assert.True(t, folder.IsZero())
	assert.False(t, folder.Contains("/work/app/main.cpp"))
}

func TestCrashRecordOrdering(t *testing.T) {
	rec := NewCrashRecord()
	assert.Equal(t, 0, rec.Len())
	assert.True(t, rec.Oldest().IsZero())
	assert.True(t, rec.Newest().IsZero())

	t0 := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	rec.Append(t0)
	rec.Append(t0.Add(time.Minute))
	rec.Append(t0.Add(2 * time.Minute))

	require.Equal(t, 3, rec.Len())
	assert.Equal(t, t0, rec.Oldest())
	assert.Equal(t, t0.Add(2*time.Minute), rec.Newest())

	rec.DropOldest()
	assert.Equal(t, 2, rec.Len())
	assert.Equal(t, t0.Add(time.Minute), rec.Oldest())

	timestamps := rec.Timestamps()
	require.Len(t, timestamps, 2)
	timestamps[0] = time.Time{} // copies do not alias the record
	assert.Equal(t, t0.Add(time.Minute), rec.Oldest())
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "not-started", StateNotStarted.String())
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "disposed", StateDisposed.String())
}
