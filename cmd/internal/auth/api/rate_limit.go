package authapi

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// maxTrackedClients bounds the limiter map; beyond it idle entries are pruned.
const maxTrackedClients = 4096

// ipLimiter is a sliding-window limiter keyed by client IP.
type ipLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
}

func newIPLimiter(limit int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
	}
}

// allow records an attempt at now. When the window is full it returns false
// and the time until the oldest attempt leaves the window.
func (l *ipLimiter) allow(ip net.IP, now time.Time) (bool, time.Duration) {
	if l == nil || l.limit <= 0 {
		return true, 0
	}
	key := "unknown"
	if ip != nil {
		key = ip.String()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.hits[key]; !ok && len(l.hits) >= maxTrackedClients {
		l.pruneLocked(now)
	}

	events := trimWindow(l.hits[key], now.Add(-l.window))
	if len(events) >= l.limit {
		l.hits[key] = events
		return false, events[0].Add(l.window).Sub(now)
	}
	l.hits[key] = append(events, now)
	return true, 0
}

func (l *ipLimiter) pruneLocked(now time.Time) {
	cut := now.Add(-l.window)
	for k, events := range l.hits {
		if events = trimWindow(events, cut); len(events) == 0 {
			delete(l.hits, k)
		} else {
			l.hits[k] = events
		}
	}
}

func trimWindow(events []time.Time, cut time.Time) []time.Time {
	dst := events[:0]
	for _, t := range events {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	return dst
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
}
