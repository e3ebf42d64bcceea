package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
)

// RateLimitConfig allows Max requests per client in any rolling Window.
type RateLimitConfig struct {
	Bucket  string // metrics label
	Max     int
	Window  time.Duration
	Message string
}

// Limiter keeps a log of admitted request times per client address. A
// request is admitted while fewer than Max admissions fall inside the
// Window that ends at it, so no rolling window ever holds more than Max.
type Limiter struct {
	cfg     RateLimitConfig
	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time
	warn    rate.Sometimes

	mu      sync.Mutex
	clients map[string]*client
	swept   time.Time
}

type client struct {
	hits []time.Time // ascending
}

func (c *client) expire(cutoff time.Time) {
	i := 0
	for i < len(c.hits) && !c.hits[i].After(cutoff) {
		i++
	}
	c.hits = c.hits[i:]
}

// NewLimiter creates a per-client limiter.
func NewLimiter(cfg RateLimitConfig, metrics *monitoring.Metrics, logger *zap.Logger) *Limiter {
	if cfg.Max <= 0 {
		cfg.Max = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Message == "" {
		cfg.Message = "Too many requests, please try again later"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		warn:    rate.Sometimes{First: 1, Interval: time.Minute},
		clients: make(map[string]*client),
	}
}

// Allow consumes one request for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > l.cfg.Window {
		for k, c := range l.clients {
			if c.expire(cutoff); len(c.hits) == 0 {
				delete(l.clients, k)
			}
		}
		l.swept = now
	}

	c, ok := l.clients[key]
	if !ok {
		c = &client{hits: make([]time.Time, 0, l.cfg.Max)}
		l.clients[key] = c
	}
	c.expire(cutoff)
	if len(c.hits) >= l.cfg.Max {
		return false
	}
	c.hits = append(c.hits, now)
	return true
}

// Clients returns the number of tracked clients.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Middleware rejects over-limit requests with 429 and the uniform error body.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			l.metrics.RecordRateLimited(l.cfg.Bucket)
			l.warn.Do(func() {
				l.logger.Warn("rate limit reached",
					zap.String("bucket", l.cfg.Bucket), zap.String("client", c.ClientIP()))
			})
			abortJSON(c, http.StatusTooManyRequests, l.cfg.Message)
			return
		}
		c.Next()
	}
}

// RateLimit creates a per-client rate limiting middleware.
func RateLimit(cfg RateLimitConfig, metrics *monitoring.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return NewLimiter(cfg, metrics, logger).Middleware()
}
