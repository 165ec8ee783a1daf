package security

import "time"

// SessionExpired reports whether a session last active at lastActivity has
// been idle for idle or longer. A non-positive idle never expires.
func SessionExpired(lastActivity time.Time, idle time.Duration, now time.Time) bool {
	if idle <= 0 {
		return false
	}
	return now.Sub(lastActivity) >= idle
}

// SessionRemaining returns how long the session stays valid, never negative.
func SessionRemaining(lastActivity time.Time, idle time.Duration, now time.Time) time.Duration {
	if idle <= 0 {
		return 0
	}
	left := lastActivity.Add(idle).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// ShouldWarn reports whether the session is still valid but will expire
// within warnBefore.
func ShouldWarn(lastActivity time.Time, idle, warnBefore time.Duration, now time.Time) bool {
	if SessionExpired(lastActivity, idle, now) {
		return false
	}
	return SessionRemaining(lastActivity, idle, now) <= warnBefore
}
