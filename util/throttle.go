// Package util holds small helpers shared by commands.
package util

import "time"

// SkipThrottler reports whether enough time has passed since it last said Ok.
// Calls in between are skipped rather than delayed.
type SkipThrottler struct {
	d    time.Duration
	last time.Time
	now  func() time.Time
}

func NewSkipThrottler(d time.Duration) *SkipThrottler {
	tt := &SkipThrottler{d: d, last: time.Date(0, 0, 0, 0, 0, 0, 0, time.UTC), now: time.Now}
	return tt
}

// Clock replaces time.Now.
func (tt *SkipThrottler) Clock(now func() time.Time) *SkipThrottler {
	tt.now = now
	return tt
}

func (tt *SkipThrottler) Ok() bool {
	now := tt.now()
	if now.Before(tt.last.Add(tt.d)) {
		return false
	}

	tt.last = now
	return true
}
