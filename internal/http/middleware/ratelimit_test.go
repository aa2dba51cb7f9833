package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyLimiterBurstThenRefill(t *testing.T) {
	l := NewReplyLimiter(1, 2)
	now := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("203.0.113.7"))
	assert.True(t, l.Allow("203.0.113.7"))
	assert.False(t, l.Allow("203.0.113.7"), "burst exhausted")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("203.0.113.7"), "one token refilled after a second")
	assert.False(t, l.Allow("203.0.113.7"))
}

func TestReplyLimiterIsolatesSenders(t *testing.T) {
	l := NewReplyLimiter(1, 1)

	require.True(t, l.Allow("203.0.113.7"))
	assert.False(t, l.Allow("203.0.113.7"))
	assert.True(t, l.Allow("198.51.100.4"), "another sender has its own bucket")
}

func TestReplyLimiterSweepsIdleBuckets(t *testing.T) {
	l := NewReplyLimiter(1, 1)
	now := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i <= sweepThreshold; i++ {
		l.Allow(string(rune('a'+i%26)) + time.Duration(i).String())
	}
	require.Greater(t, len(l.buckets), sweepThreshold)

	// All of those are idle once the TTL passes, so the next request from a
	// fresh sender triggers the sweep and shrinks the map.
	now = now.Add(bucketIdleTTL + time.Minute)
	l.Allow("fresh-sender")
	assert.Equal(t, 1, len(l.buckets))
}

func TestRateLimitMiddlewareRejectsOverBudget(t *testing.T) {
	mw := RateLimit(1, 1)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhook/email-reply", nil)
	req.Header.Set("X-Real-Ip", "203.0.113.7")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
