package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/securesearch/securesearch/internal/apierrors"
)

// RateLimiterStore holds one token-bucket limiter per client, mirroring the
// teacher's per-user limiter map but keyed on client_id instead of user_id.
type RateLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiterStore builds a store allowing requestsPerMinute per client,
// with a burst of 10% of that rate.
func NewRateLimiterStore(requestsPerMinute int) *RateLimiterStore {
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiterStore{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
	}
}

func (s *RateLimiterStore) limiterFor(clientID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[clientID]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[clientID] = limiter
	}
	return limiter
}

// RateLimit enforces store's per-client limit. It must run after BearerAuth,
// which is what attaches the client identity it keys on.
func RateLimit(store *RateLimiterStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, ok := ClientFromContext(c)
		if !ok {
			apierrors.RespondUnauthenticated(c, "client identity required for rate limiting")
			c.Abort()
			return
		}

		limiter := store.limiterFor(client.ClientID.String())
		if !limiter.Allow() {
			// Rate limiting is a transport-level throttle, not one of the
			// typed error kinds the server's operations themselves raise,
			// so it bypasses apierrors and writes a plain 429 directly.
			perMinute := int(store.limit * 60)
			c.Header("X-RateLimit-Limit", strconv.Itoa(perMinute))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "60")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "RATE_LIMIT_EXCEEDED", "message": "request rate limit exceeded"})
			c.Abort()
			return
		}

		remaining := int(limiter.TokensAt(time.Now()))
		c.Header("X-RateLimit-Limit", strconv.Itoa(int(store.limit*60)))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}
