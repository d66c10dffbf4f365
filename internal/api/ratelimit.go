package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/dronewatch/incident-engine/internal/metrics"
)

// ──────────────────────────────────────────────────────────────────────
// Per-IP Sliding Window Rate Limiter
//
// Counts requests inside a rolling window instead of refilling a bucket,
// so a client cannot double its budget by straddling a window boundary.
//
// With Redis configured the window lives in a per-IP sorted set keyed by
// request timestamp, which makes the limit hold across replicas. Without
// Redis, or when Redis errors, the limiter falls back to an in-process
// timestamp list per IP.
//
// A background goroutine removes IPs that have been idle for more than
// cleanupIdleDuration to prevent unbounded memory growth from transient
// clients.
// ──────────────────────────────────────────────────────────────────────

const cleanupIdleDuration = 10 * time.Minute

// RateLimiter holds per-IP request history.
type RateLimiter struct {
	max    int
	window time.Duration
	rdb    *redis.Client // nil means in-memory only
	seq    atomic.Int64  // uniquifies sorted-set members within a nanosecond

	mu    sync.Mutex
	local map[string][]time.Time
}

// NewRateLimiter creates a limiter allowing max requests per window per IP.
// rdb may be nil; the limiter then keeps all state in process.
func NewRateLimiter(max int, window time.Duration, rdb *redis.Client) *RateLimiter {
	rl := &RateLimiter{
		max:    max,
		window: window,
		rdb:    rdb,
		local:  make(map[string][]time.Time),
	}
	go rl.cleanupLoop()
	return rl
}

// allow reports whether the request fits the window, and when it does not,
// how long until the oldest counted request rolls out.
func (rl *RateLimiter) allow(ctx context.Context, ip string) (bool, time.Duration) {
	if rl.rdb != nil {
		ok, retryAfter, err := rl.allowRedis(ctx, ip)
		if err == nil {
			return ok, retryAfter
		}
		log.Printf("[RateLimit] Redis unavailable, using in-memory window: %v", err)
	}
	return rl.allowLocal(ip)
}

func (rl *RateLimiter) allowRedis(ctx context.Context, ip string) (bool, time.Duration, error) {
	key := "ratelimit:" + ip
	now := time.Now()
	cutoff := now.Add(-rl.window).UnixNano()

	pipe := rl.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	if card.Val() >= int64(rl.max) {
		oldest, err := rl.rdb.ZRangeWithScores(ctx, key, 0, 0).Result()
		if err != nil {
			return false, 0, err
		}
		retryAfter := rl.window
		if len(oldest) > 0 {
			expires := time.Unix(0, int64(oldest[0].Score)).Add(rl.window)
			retryAfter = time.Until(expires)
		}
		return false, retryAfter, nil
	}

	// Timestamps collide under load, so members carry a sequence suffix.
	member := fmt.Sprintf("%d-%d", now.UnixNano(), rl.seq.Add(1))
	pipe = rl.rdb.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}

func (rl *RateLimiter) allowLocal(ip string) (bool, time.Duration) {
	now := time.Now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	stamps := rl.local[ip]
	kept := stamps[:0]
	for _, s := range stamps {
		if s.After(cutoff) {
			kept = append(kept, s)
		}
	}

	if len(kept) >= rl.max {
		rl.local[ip] = kept
		return false, kept[0].Add(rl.window).Sub(now)
	}

	rl.local[ip] = append(kept, now)
	return true, 0
}

// Middleware returns a Gin handler that enforces the rate limit.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := rl.allow(c.Request.Context(), c.ClientIP())
		if !allowed {
			metrics.ObserveRateLimited()
			seconds := int(retryAfter.Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      "Rate limit exceeded",
				"retryAfter": seconds,
				"limit":      fmt.Sprintf("%d requests per %s per IP", rl.max, rl.window),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// cleanupLoop removes IPs whose newest request predates the idle cutoff.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupIdleDuration)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-cleanupIdleDuration)
		rl.mu.Lock()
		for ip, stamps := range rl.local {
			if len(stamps) == 0 || stamps[len(stamps)-1].Before(cutoff) {
				delete(rl.local, ip)
			}
		}
		rl.mu.Unlock()
	}
}
