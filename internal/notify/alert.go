package notify

import (
	"sync"
	"time"
)

// Alert is a transient user-facing notification. Tag is the id of the
// message that raised it; delivery platforms use the tag to collapse
// duplicate alerts for the same message.
type Alert struct {
	Tag   string
	Title string
	Body  string
}

// Alerter decides when an unread item becomes a transient alert: only
// when it is fresh (inside the recency window), the user has granted
// notification permission, the same message has not alerted before,
// and the per-user rate limit allows it. At most one alert comes out
// of one observation cycle by construction.
type Alerter struct {
	window  time.Duration
	limiter *LimiterStore

	mu   sync.Mutex
	seen map[string]string // userID -> last alerted tag
}

// NewAlerter builds an Alerter with the given recency window and
// per-user limiter.
func NewAlerter(window time.Duration, limiter *LimiterStore) *Alerter {
	return &Alerter{
		window:  window,
		limiter: limiter,
		seen:    make(map[string]string),
	}
}

// Decide evaluates the newest unread item for a user and returns the
// alert to raise, if any.
func (a *Alerter) Decide(userID string, newest Item, now time.Time, permissionGranted bool) (Alert, bool) {
	if !permissionGranted {
		return Alert{}, false
	}
	if newest.MessageID == "" {
		return Alert{}, false
	}
	// Stale items never alert; they are still visible in the digest.
	if now.Sub(newest.Timestamp) > a.window {
		return Alert{}, false
	}

	a.mu.Lock()
	already := a.seen[userID] == newest.MessageID
	a.mu.Unlock()
	if already {
		return Alert{}, false
	}

	if !a.limiter.Allow(userID) {
		return Alert{}, false
	}

	a.mu.Lock()
	a.seen[userID] = newest.MessageID
	a.mu.Unlock()

	return Alert{
		Tag:   newest.MessageID,
		Title: "New message",
		Body:  newest.Text,
	}, true
}
