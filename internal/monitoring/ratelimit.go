package monitoring

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"
)

const (
	DefaultRateLimit  = 10
	DefaultRateWindow = 60 * time.Second
	keyPrefixLength   = 50
)

// RateLimiter allows up to limit events per key in a fixed window that
// starts with the key's first event.
type RateLimiter struct {
	mu     sync.Mutex
	counts *cache.Cache
	limit  int
	window time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateLimiter{
		counts: cache.New(window, 2*window),
		limit:  limit,
		window: window,
	}
}

// RateKey is the event name joined with the first 50 characters of its
// message.
func RateKey(name, message string) string {
	if utf8.RuneCountInString(message) > keyPrefixLength {
		message = string([]rune(message)[:keyPrefixLength])
	}
	return name + ":" + message
}

// Allow records one event for key and reports whether it is within the
// limit.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.counts.Add(key, 1, r.window); err == nil {
		return true
	}
	n, err := r.counts.IncrementInt(key, 1)
	if err != nil {
		// expired between Add and IncrementInt
		r.counts.Set(key, 1, r.window)
		return true
	}
	return n <= r.limit
}
