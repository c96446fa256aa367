package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiter is a fixed-window limiter shared by all replicas through Redis.
// Requests are keyed by organization when authenticated, by client IP
// otherwise. A nil client or a Redis failure lets the request through.
func RateLimiter(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if claims := GetClaims(c); claims != nil {
			subject = "org:" + claims.OrganizationID
		}
		secs := int64(window / time.Second)
		if secs < 1 {
			secs = 1
		}
		bucket := time.Now().Unix() / secs
		key := fmt.Sprintf("%s%s:%d", rateLimitPrefix, subject, bucket)

		ctx := c.Request.Context()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("rate limiter: redis unavailable, allowing request")
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if count > int64(limit) {
			reset := time.Unix((bucket+1)*secs, 0)
			c.Header("Retry-After", strconv.Itoa(int(time.Until(reset).Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("too many requests, try again shortly"))
			return
		}
		c.Next()
	}
}
