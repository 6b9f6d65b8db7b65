package crashpolicy

import (
	"testing"
	"time"

	"github.com/langtools/analyzerd/src/analyzerd/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _t0 = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func recordAt(offsets ...time.Duration) *entity.CrashRecord {
	rec := entity.NewCrashRecord()
	for _, off := range offsets {
		rec.Append(_t0.Add(off))
	}
	return rec
}

func TestFewCrashesReplaceTransparently(t *testing.T) {
	p := New(DefaultCrashCountThreshold, DefaultCrashWindow)

	rec := entity.NewCrashRecord()
	for i := 0; i < 4; i++ {
		assert.Equal(t, Replace, p.Decide(rec, _t0.Add(time.Duration(i)*time.Second)))
	}
	assert.Equal(t, 4, rec.Len())
}

func TestBurstWithinWindowStopsPermanently(t *testing.T) {
	p := New(DefaultCrashCountThreshold, DefaultCrashWindow)

	// Crashes at t, t+30s, t+40s, t+50s; the fifth arrives at t+60s,
	// well inside the 3 minute window.
	rec := recordAt(0, 30*time.Second, 40*time.Second, 50*time.Second)
	assert.Equal(t, Stop, p.Decide(rec, _t0.Add(60*time.Second)))
	assert.Equal(t, 5, rec.Len())
}

func TestSlowCrashesKeepRollingHistory(t *testing.T) {
	p := New(DefaultCrashCountThreshold, DefaultCrashWindow)

	// Crashes at t, t+60s, t+130s, t+200s; the fifth arrives at t+250s,
	// spanning more than 3 minutes. Not a crash loop: the oldest entry is
	// dropped and the session is replaced.
	rec := recordAt(0, 60*time.Second, 130*time.Second, 200*time.Second)
	assert.Equal(t, Replace, p.Decide(rec, _t0.Add(250*time.Second)))

	require.Equal(t, 4, rec.Len())
	assert.Equal(t, _t0.Add(60*time.Second), rec.Oldest())
	assert.Equal(t, _t0.Add(250*time.Second), rec.Newest())
}

func TestRollingHistoryEventuallyStops(t *testing.T) {
	p := New(DefaultCrashCountThreshold, DefaultCrashWindow)

	rec := recordAt(0, 60*time.Second, 130*time.Second, 200*time.Second)
	require.Equal(t, Replace, p.Decide(rec, _t0.Add(250*time.Second)))

	// Still spread out: the window keeps sliding forward.
	require.Equal(t, Replace, p.Decide(rec, _t0.Add(255*time.Second)))

	// A quick follow-up burst now falls inside the window.
	assert.Equal(t, Stop, p.Decide(rec, _t0.Add(260*time.Second)))
}

func TestNonPositiveSettingsFallBackToDefaults(t *testing.T) {
	p := New(0, 0)
	assert.Equal(t, DefaultCrashCountThreshold, p.threshold)
	assert.Equal(t, DefaultCrashWindow, p.window)
}
