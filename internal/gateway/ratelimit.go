package gateway

import (
	"sync"
	"time"
)

const (
	// limiterWindow is the fixed counting window per source.
	limiterWindow = time.Minute

	// limiterMaxHits is the request budget per source per window.
	limiterMaxHits = 120

	// limiterMaxSources caps the tracked sources so rotating client IPs
	// cannot grow the table without bound.
	limiterMaxSources = 4096
)

type hitWindow struct {
	start time.Time
	hits  int
}

// webhookRateLimiter counts webhook requests per source IP in fixed
// windows. Safe for concurrent use.
type webhookRateLimiter struct {
	mu      sync.Mutex
	sources map[string]hitWindow
}

func newWebhookRateLimiter() *webhookRateLimiter {
	return &webhookRateLimiter{sources: make(map[string]hitWindow)}
}

// Allow records a hit for the source and reports whether it is still
// within budget for the current window.
func (l *webhookRateLimiter) Allow(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	w, ok := l.sources[source]
	if !ok || now.Sub(w.start) >= limiterWindow {
		if !ok && len(l.sources) >= limiterMaxSources {
			l.sweep(now)
		}
		l.sources[source] = hitWindow{start: now, hits: 1}
		return true
	}

	w.hits++
	l.sources[source] = w
	return w.hits <= limiterMaxHits
}

// sweep drops expired windows, then evicts arbitrary entries if the table
// is still full. Called with the lock held.
func (l *webhookRateLimiter) sweep(now time.Time) {
	for k, w := range l.sources {
		if now.Sub(w.start) >= limiterWindow {
			delete(l.sources, k)
		}
	}
	for len(l.sources) >= limiterMaxSources {
		for k := range l.sources {
			delete(l.sources, k)
			break
		}
	}
}
