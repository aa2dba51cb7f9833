package middleware

import (
	"net/http"
	"sync"
	"time"
)

// Idle buckets older than this are evicted the next time the map is swept.
const bucketIdleTTL = 10 * time.Minute

// sweepThreshold bounds the bucket map; the inbound webhook sees a small,
// stable set of provider IPs, so the map staying under this is the norm.
const sweepThreshold = 1024

// ReplyLimiter is a per-sender token bucket in front of the email reply
// webhook. The mail provider retries failed deliveries aggressively, so the
// limiter answers 429 rather than letting retry storms reach the parser.
type ReplyLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    float64
	burst   float64
	now     func() time.Time
}

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

// NewReplyLimiter allows rate requests/sec per sender with the given burst.
func NewReplyLimiter(rate float64, burst int) *ReplyLimiter {
	return &ReplyLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    rate,
		burst:   float64(burst),
		now:     time.Now,
	}
}

// Allow reports whether a request from sender is within its budget.
func (l *ReplyLimiter) Allow(sender string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.buckets) > sweepThreshold {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[sender]
	if !ok {
		b = &tokenBucket{tokens: l.burst}
		l.buckets[sender] = b
	} else {
		b.tokens += now.Sub(b.seen).Seconds() * l.rate
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweepLocked drops buckets idle past the TTL. Runs inline on the request
// path, only once the map outgrows the threshold.
func (l *ReplyLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-bucketIdleTTL)
	for sender, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, sender)
		}
	}
}

// RateLimit wraps a handler with a ReplyLimiter keyed by client IP. Requests
// over budget get 429 Too Many Requests.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewReplyLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			// chi's RealIP middleware resolves the forwarded client address.
			if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				ip = xri
			}
			if !limiter.Allow(ip) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
