package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/mindease/mindease-api/pkg/errors"
	"github.com/mindease/mindease-api/pkg/httputil"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiterConfig allows Requests per Window for each client IP.
type RateLimiterConfig struct {
	Requests int
	Window   time.Duration
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Requests: 300,
		Window:   15 * time.Minute,
	}
}

type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *cache.Cache
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Requests <= 0 || config.Window <= 0 {
		config = DefaultRateLimiterConfig()
	}
	return &RateLimiter{
		limit: rate.Limit(float64(config.Requests) / config.Window.Seconds()),
		burst: config.Requests,
		// idle clients are forgotten once a full window has passed
		limiters: cache.New(config.Window, config.Window),
	}
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			httputil.RespondWithError(c, apperrors.TooManyRequests("too many requests, please try again later"))
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(key string) bool {
	if v, ok := rl.limiters.Get(key); ok {
		rl.limiters.SetDefault(key, v)
		return v.(*rate.Limiter).Allow()
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	if err := rl.limiters.Add(key, l, cache.DefaultExpiration); err != nil {
		// lost a race with another request from the same client
		if v, ok := rl.limiters.Get(key); ok {
			return v.(*rate.Limiter).Allow()
		}
	}
	return l.Allow()
}
