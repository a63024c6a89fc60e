package middlewares

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter shares the counter across API replicas: INCR + EXPIRE per
// key per window. Fails open — if Redis is down we would rather serve than
// lock every user out of login.
type RedisRateLimiter struct {
	rdb    *redis.Client
	window time.Duration
	limit  int
	log    *slog.Logger
}

func NewRedisRateLimiter(rdb *redis.Client, limit int, window time.Duration, log *slog.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		rdb:    rdb,
		window: window,
		limit:  limit,
		log:    log,
	}
}

func (rl *RedisRateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			key = clientIP(c)
		}

		redisKey := "ratelimit:" + key

		ctx := c.Request.Context()

		count, err := rl.rdb.Incr(ctx, redisKey).Result()

		if err != nil {
			rl.log.Warn("rate limiter redis error, failing open", "err", err)
			c.Next()
			return
		}

		if count == 1 {
			// first hit opens the window
			if err := rl.rdb.Expire(ctx, redisKey, rl.window).Err(); err != nil {
				rl.log.Warn("rate limiter expire failed", "err", err)
			}
		}

		if count > int64(rl.limit) {
			ttl, err := rl.rdb.TTL(ctx, redisKey).Result()

			retryAfter := int(rl.window.Seconds())

			if err == nil && ttl > 0 {
				retryAfter = int(ttl.Seconds())
			}

			abortRateLimited(c, retryAfter)
			return
		}

		c.Next()
	}
}
