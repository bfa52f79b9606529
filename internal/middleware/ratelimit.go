package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL is how long an unused limiter is kept before Cleanup drops it.
	IdleTTL time.Duration
}

// DefaultRateLimiterConfig applies to websocket handshakes at the gateway.
var DefaultRateLimiterConfig = RateLimiterConfig{
	RequestsPerSecond: 10.0,
	BurstSize:         20,
	IdleTTL:           5 * time.Minute,
}

// DefaultMessageLimiterConfig applies to inbound websocket messages. It is
// looser than the handshake limit since match-update relays are frequent.
var DefaultMessageLimiterConfig = RateLimiterConfig{
	RequestsPerSecond: 60.0,
	BurstSize:         120,
	IdleTTL:           5 * time.Minute,
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages per-client token buckets. Idle buckets are dropped by
// Cleanup, which the janitor schedules.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	config   RateLimiterConfig
	now      func() time.Time
	log      zerolog.Logger
}

func NewRateLimiter(config RateLimiterConfig, log zerolog.Logger) *RateLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultRateLimiterConfig.IdleTTL
	}
	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		config:   config,
		now:      time.Now,
		log:      log.With().Str("component", "ratelimit").Logger(),
	}
}

// Allow checks if a request from the given client ID should be allowed
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	l, ok := rl.limiters[clientID]
	if !ok {
		l = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize),
		}
		rl.limiters[clientID] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}

// Forget drops the limiter of a client that is gone for good.
func (rl *RateLimiter) Forget(clientID string) {
	rl.mu.Lock()
	delete(rl.limiters, clientID)
	rl.mu.Unlock()
}

// Count returns the number of tracked clients.
func (rl *RateLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Cleanup removes limiters idle for longer than IdleTTL and returns how many
// were removed.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.config.IdleTTL)
	removed := 0
	for id, l := range rl.limiters {
		if l.lastSeen.Before(cutoff) {
			delete(rl.limiters, id)
			removed++
		}
	}
	if removed > 0 {
		rl.log.Debug().Int("removed", removed).Msg("cleaned up inactive rate limiters")
	}
	return removed
}

// Middleware limits requests by client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.ClientIP()
		if !rl.Allow(clientID) {
			rl.log.Warn().Str("client", clientID).Str("path", c.Request.URL.Path).Msg("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Please slow down."})
			return
		}
		c.Next()
	}
}
