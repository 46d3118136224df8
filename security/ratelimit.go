package security

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultMaxEntries bounds the number of tracked identifiers so an attacker
// rotating source addresses cannot grow the limiter map without limit.
const defaultMaxEntries = 10000

// limiterEntry tracks a token bucket and its last access time.
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter provides per-identifier rate limiting using a token bucket
// per identifier (typically a client IP). Entries idle longer than the
// cleanup interval are dropped by a background goroutine.
type RateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*limiterEntry
	rate       rate.Limit
	burst      int
	maxEntries int
	logger     *slog.Logger
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond with the
// given burst per identifier. A zero or negative rate disables limiting
// (Allow always returns true).
func NewRateLimiter(requestsPerSecond, burst int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}

	rl := &RateLimiter{
		limiters:   make(map[string]*limiterEntry),
		rate:       rate.Limit(requestsPerSecond),
		burst:      burst,
		maxEntries: defaultMaxEntries,
		logger:     logger,
		stop:       make(chan struct{}),
	}

	if rl.rate > 0 {
		go rl.cleanupLoop(5 * time.Minute)
	}
	return rl
}

// Allow reports whether a request from the given identifier is permitted.
func (rl *RateLimiter) Allow(identifier string) bool {
	if rl.rate <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[identifier]
	if !ok {
		if len(rl.limiters) >= rl.maxEntries {
			rl.evictOldestLocked()
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[identifier] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter.Allow()
}

// evictOldestLocked drops the least recently used entry. Callers must hold
// the mutex.
func (rl *RateLimiter) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range rl.limiters {
		if oldestKey == "" || entry.lastAccess.Before(oldest) {
			oldestKey = key
			oldest = entry.lastAccess
		}
	}
	if oldestKey != "" {
		delete(rl.limiters, oldestKey)
	}
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup(interval)
		}
	}
}

// cleanup removes entries idle longer than maxIdle.
func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)

	rl.mu.Lock()
	removed := 0
	for key, entry := range rl.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	remaining := len(rl.limiters)
	rl.mu.Unlock()

	if removed > 0 {
		rl.logger.Debug("Cleaned up idle rate limiters", "removed", removed, "remaining", remaining)
	}
}
