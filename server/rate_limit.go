package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	limiterCapacity = 10_000
	limiterTTL      = 15 * time.Minute
)

// clientLimiter holds one token bucket per client address. Buckets are dropped
// limiterTTL after creation and start full again on the next attempt.
type clientLimiter struct {
	mu        sync.Mutex
	perMinute int
	burst     int
	buckets   *expirable.LRU[string, *rate.Limiter]
}

// newClientLimiter returns nil when perMinute is not positive, which disables limiting.
func newClientLimiter(perMinute, burst int) *clientLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		perMinute: perMinute,
		burst:     burst,
		buckets:   expirable.NewLRU[string, *rate.Limiter](limiterCapacity, nil, limiterTTL),
	}
}

func (l *clientLimiter) Allow(r *http.Request) bool {
	if l == nil {
		return true
	}
	key := clientAddress(r)

	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.buckets.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.burst)
		l.buckets.Add(key, limiter)
	}
	return limiter.Allow()
}

// clientAddress is the remote host of the connection. Forwarding headers are
// ignored so clients cannot pick their own bucket.
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
