// Package util holds small shared helpers with no natural home of
// their own, mirroring the original's util.rs grab-bag.
package util

import "time"

// Timer tracks a countdown deadline the way the Rust original's
// util::Timer does: negative means "never done" (block forever), zero
// means "already done" (never block), positive counts down from when
// the Timer was created.
type Timer struct {
	deadline time.Time
	forever  bool
	never    bool
}

// NewTimer starts a countdown of timeoutSeconds seconds.
func NewTimer(timeoutSeconds int) *Timer {
	switch {
	case timeoutSeconds < 0:
		return &Timer{forever: true}
	case timeoutSeconds == 0:
		return &Timer{never: true}
	default:
		return &Timer{deadline: time.Now().Add(time.Duration(timeoutSeconds) * time.Second)}
	}
}

// Done reports whether the deadline has passed.
func (t *Timer) Done() bool {
	if t.forever {
		return false
	}
	if t.never {
		return true
	}
	return !time.Now().Before(t.deadline)
}

// Remaining returns the remaining whole seconds, using the same
// sentinel convention as the constructor (negative = forever, 0 = no
// time left).
func (t *Timer) Remaining() int {
	if t.forever {
		return -1
	}
	if t.never {
		return 0
	}
	remaining := int(time.Until(t.deadline).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
