// Package crashpolicy decides whether a crashed analyzer session is replaced
// transparently or stopped for good. Only a burst of crashes inside a short
// window is terminal; crashes spread over a longer period keep a rolling
// history and replace.
package crashpolicy

import (
	"time"

	"github.com/langtools/analyzerd/src/analyzerd/entity"
)

// Decision is the outcome of evaluating a crash event.
type Decision int

const (
	// Replace instructs the registry to spawn a fresh session for the same
	// folder, migrating the crash record and tracked documents.
	Replace Decision = iota
	// Stop instructs the registry to tear the session down and not replace
	// it for the remainder of the window lifetime.
	Stop
)

const (
	// DefaultCrashCountThreshold is the number of recorded crashes at which
	// the burst window is evaluated.
	DefaultCrashCountThreshold = 5
	// DefaultCrashWindow is the burst window; this many crashes inside it is
	// treated as a crash loop.
	DefaultCrashWindow = 3 * time.Minute
)

// Policy is a sliding-window rate limiter over a folder's crash record.
type Policy struct {
	threshold int
	window    time.Duration
}

// New returns a Policy with the given threshold and window. Non-positive
// values fall back to the defaults.
func New(threshold int, window time.Duration) Policy {
	if threshold <= 0 {
		threshold = DefaultCrashCountThreshold
	}
	if window <= 0 {
		window = DefaultCrashWindow
	}
	return Policy{threshold: threshold, window: window}
}

// Decide records a crash at the given time and returns the resulting
// decision. When the threshold is reached but the crashes span more than the
// window, the oldest entry is dropped so the record keeps a rolling history
// of the most recent crashes rather than resetting to empty.
func (p Policy) Decide(record *entity.CrashRecord, now time.Time) Decision {
	record.Append(now)

	if record.Len() < p.threshold {
		return Replace
	}

	if record.Newest().Sub(record.Oldest()) <= p.window {
		return Stop
	}

	record.DropOldest()
	return Replace
}
