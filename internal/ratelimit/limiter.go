// Package ratelimit provides a sliding-window limiter for transfer attempts.
package ratelimit

import (
	"sync"
	"time"
)

// window holds one account's recent attempt timestamps behind its own lock so
// limiter bookkeeping never contends across accounts.
type window struct {
	mu     sync.Mutex
	stamps []time.Time
}

// Limiter admits at most max attempts per account within a trailing window.
type Limiter struct {
	max    int
	window time.Duration

	mu      sync.RWMutex
	windows map[string]*window
}

// New builds a limiter admitting max attempts per account per window.
func New(max int, windowSize time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  windowSize,
		windows: make(map[string]*window),
	}
}

func (l *Limiter) get(accountID string) *window {
	l.mu.RLock()
	w, ok := l.windows[accountID]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.windows[accountID]; ok {
		return w
	}
	w = &window{}
	l.windows[accountID] = w
	return w
}

// Allow prunes attempts older than the window, then admits and records the
// attempt at now unless the account already used up its quota. A denied
// attempt is not recorded. Check and record are atomic per account.
func (l *Limiter) Allow(accountID string, now time.Time) bool {
	w := l.get(accountID)
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if now.Sub(ts) < l.window {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= l.max {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}
